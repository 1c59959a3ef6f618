package results

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/websec-cli/api/schemas"
)

func TestBandFor(t *testing.T) {
	tests := []struct {
		score int
		want  RiskBand
	}{
		{100, BandSecure}, {90, BandSecure},
		{89, BandModerate}, {70, BandModerate},
		{69, BandElevated}, {50, BandElevated},
		{49, BandCritical}, {0, BandCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BandFor(tt.score), "score %d", tt.score)
	}
}

func TestSeverityCounts(t *testing.T) {
	result := &schemas.ScanResult{Vulnerabilities: []schemas.Vulnerability{
		{Severity: schemas.SeverityHigh},
		{Severity: schemas.SeverityHigh},
		{Severity: schemas.SeverityInfo},
	}}

	counts := SeverityCounts(result)
	assert.Len(t, counts, 5)
	assert.Equal(t, 2, counts[schemas.SeverityHigh])
	assert.Equal(t, 1, counts[schemas.SeverityInfo])
	assert.Equal(t, 0, counts[schemas.SeverityCritical])

	assert.Len(t, SeverityCounts(nil), 5)
}

func TestPrioritize(t *testing.T) {
	in := []schemas.Vulnerability{
		{ID: "a", Severity: schemas.SeverityLow},
		{ID: "b", Severity: schemas.SeverityCritical},
		{ID: "c", Severity: schemas.SeverityLow},
		{ID: "d", Severity: schemas.SeverityHigh},
	}

	out := Prioritize(in)

	ids := make([]string, len(out))
	for i, v := range out {
		ids[i] = v.ID
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
	assert.Equal(t, "a", in[0].ID, "input is left untouched")
}

func TestLookupCWE(t *testing.T) {
	tests := []struct {
		raw      string
		wantID   string
		wantName string
		ok       bool
	}{
		{"CWE-89", "CWE-89", "Improper Neutralization of Special Elements used in an SQL Command ('SQL Injection')", true},
		{"cwe 79", "CWE-79", "Improper Neutralization of Input During Web Page Generation ('Cross-site Scripting')", true},
		{"639", "CWE-639", "Authorization Bypass Through User-Controlled Key", true},
		{"CWE-99999: Made up", "CWE-99999", "", true},
		{"CWE-000", "", "", false},
		{"", "", "", false},
		{"not a cwe", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			entry, ok := LookupCWE(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.wantID, entry.ID)
			assert.Equal(t, tt.wantName, entry.Name)
		})
	}
}

package results

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/llmutil"
)

func TestDecode(t *testing.T) {
	t.Run("empty response", func(t *testing.T) {
		for _, in := range []string{"", "   \n\t"} {
			_, err := Decode(in)
			assert.ErrorIs(t, err, ErrEmptyResponse)
			assert.Equal(t, "Analysis Engine returned empty response.", err.Error())
		}
	})

	t.Run("malformed output keeps the fixed message", func(t *testing.T) {
		_, err := Decode(`{"summary": "cut off`)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedOutput)
		assert.Equal(t, "Failed to parse Analysis Report. Engine output was malformed.", err.Error())

		var malformed *MalformedError
		require.True(t, errors.As(err, &malformed))
		assert.NotNil(t, malformed.Cause)
	})

	t.Run("prose without json", func(t *testing.T) {
		_, err := Decode("I am unable to scan that target.")
		assert.ErrorIs(t, err, ErrMalformedOutput)
		assert.ErrorIs(t, err, llmutil.ErrNoJSON)
	})

	t.Run("fenced json", func(t *testing.T) {
		raw, err := Decode("```json\n{\"summary\": \"ok\", \"riskScore\": 88.6}\n```")
		require.NoError(t, err)
		require.NotNil(t, raw.Summary)
		assert.Equal(t, "ok", *raw.Summary)
		assert.Equal(t, 88.6, *raw.RiskScore)
	})
}

func TestDecode_LooselyTypedPayload(t *testing.T) {
	raw, err := Decode(`{
	  "riskScore": "61",
	  "techStack": [{"name": "nginx", "category": "Server", "version": 2.0}],
	  "vulnerabilities": [{"id": 1, "title": "Open redirect", "severity": "Low", "cwe": 601}]
	}`)
	require.NoError(t, err)

	result := Normalize(raw, "https://shop.example", schemas.ScanKindURL)
	assert.Equal(t, 61, result.RiskScore)
	require.Len(t, result.TechStack, 1)
	assert.Equal(t, "2.0", result.TechStack[0].Version)
	require.Len(t, result.Vulnerabilities, 1)
	assert.Equal(t, "1", result.Vulnerabilities[0].ID)
	assert.Equal(t, "601", result.Vulnerabilities[0].CWE)
}

func TestNormalize_DefaultsAbsentFields(t *testing.T) {
	raw, err := Decode(`{"summary": "Partial payload", "vulnerabilities": null}`)
	require.NoError(t, err)

	result := Normalize(raw, "https://example.com", schemas.ScanKindURL)

	assert.Equal(t, "Partial payload", result.Summary)
	assert.NotNil(t, result.OWASPDistribution)
	assert.NotNil(t, result.TechStack)
	assert.NotNil(t, result.Vulnerabilities)
	assert.NotNil(t, result.Headers)
	assert.NotNil(t, result.Sitemap)
	assert.NotNil(t, result.APIEndpoints)
	assert.Empty(t, result.Vulnerabilities)
	assert.Equal(t, schemas.DefaultSecurityMetrics(), result.SecurityMetrics)
	assert.Equal(t, 0, result.RiskScore)
	assert.Empty(t, result.Timestamp)

	// Absent arrays serialize as [] rather than null.
	data, err := json.Marshal(result)
	require.NoError(t, err)
	encoded := string(data)
	assert.Contains(t, encoded, `"sitemap":[]`)
	assert.Contains(t, encoded, `"vulnerabilities":[]`)
}

func TestNormalize_NilPayload(t *testing.T) {
	result := Normalize(nil, "app.js", schemas.ScanKindCode)
	assert.Equal(t, "app.js", result.Target)
	assert.Equal(t, schemas.ScanKindCode, result.ScanType)
	assert.NotNil(t, result.Headers)
}

func TestNormalize_CallerWins(t *testing.T) {
	raw, err := Decode(`{"target": "something-else", "scanType": "code", "securityMetrics": null}`)
	require.NoError(t, err)

	result := Normalize(raw, "https://example.com", schemas.ScanKindURL)
	assert.Equal(t, "https://example.com", result.Target)
	assert.Equal(t, schemas.ScanKindURL, result.ScanType)
	assert.Equal(t, schemas.DefaultSecurityMetrics(), result.SecurityMetrics)
}

func TestNormalize_FullPayload(t *testing.T) {
	payload := `{
		"target": "https://shop.example",
		"scanType": "url",
		"siteDescription": "An online store.",
		"summary": "Two issues.",
		"riskScore": 64.4,
		"securityMetrics": {"authScore": 55, "dbScore": 40.5, "networkScore": 120, "clientScore": -3},
		"owaspDistribution": [{"category": "A03:2021-Injection", "count": 2}, {"category": "A05", "count": -1}],
		"techStack": [{"name": "PHP", "category": "backend", "version": "7.4"}, {"name": "Varnish", "category": "Cache"}],
		"vulnerabilities": [
			{"id": "", "title": "SQLi", "severity": "critical", "description": "d", "affectedUrl": "/p?id=1", "impact": "i",
			 "fixCode": "f", "fixExplanation": "e", "proofOfConcept": "curl -v '/p?id=1%27'", "cwe": "CWE-89"},
			{"id": "V-2", "title": "Banner", "severity": "Informational"}
		],
		"headers": [{"name": "CSP", "value": "", "status": "MISSING"}, {"name": "HSTS", "value": "max-age=0", "status": "weak"}],
		"sitemap": ["/", "/cart"],
		"apiEndpoints": ["/api/v1/items"],
		"executiveSummary": "Fix the injection."
	}`
	raw, err := Decode(payload)
	require.NoError(t, err)

	got := Normalize(raw, "https://shop.example", schemas.ScanKindURL)

	want := schemas.ScanResult{
		Target:          "https://shop.example",
		ScanType:        schemas.ScanKindURL,
		SiteDescription: "An online store.",
		Summary:         "Two issues.",
		RiskScore:       64,
		SecurityMetrics: schemas.SecurityMetrics{
			AuthScore: 55, DBScore: 41, NetworkScore: 100, ClientScore: 0, ComplianceScore: 80,
		},
		OWASPDistribution: []schemas.OWASPItem{
			{Category: "A03:2021-Injection", Count: 2},
			{Category: "A05", Count: 0},
		},
		TechStack: []schemas.TechStackItem{
			{Name: "PHP", Category: schemas.TechBackend, Version: "7.4"},
			{Name: "Varnish", Category: schemas.TechOther},
		},
		Vulnerabilities: []schemas.Vulnerability{
			{
				ID: "VULN-001", Title: "SQLi", Severity: schemas.SeverityCritical, Description: "d",
				AffectedURL: "/p?id=1", Impact: "i", FixCode: "f", FixExplanation: "e",
				ProofOfConcept: "curl -v '/p?id=1%27'", CWE: "CWE-89",
			},
			{ID: "V-2", Title: "Banner", Severity: schemas.SeverityInfo},
		},
		Headers: []schemas.SecurityHeader{
			{Name: "CSP", Value: "", Status: schemas.HeaderMissing},
			{Name: "HSTS", Value: "max-age=0", Status: schemas.HeaderWarning},
		},
		Sitemap:          []string{"/", "/cart"},
		APIEndpoints:     []string{"/api/v1/items"},
		ExecutiveSummary: "Fix the injection.",
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestTruncateTarget(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short", "https://example.com", "https://example.com"},
		{"exactly fifty", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"fifty one", strings.Repeat("a", 51), strings.Repeat("a", 47) + "..."},
		{"sixty char url", "https://example.com/" + strings.Repeat("p", 40), "https://example.com/" + strings.Repeat("p", 27) + "..."},
		{"multibyte", strings.Repeat("é", 60), strings.Repeat("é", 47) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateTarget(tt.input)
			assert.Equal(t, tt.want, got)
			if len([]rune(tt.input)) > 50 {
				assert.Len(t, []rune(got), 50)
			}
		})
	}
}

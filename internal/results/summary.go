package results

import (
	"sort"

	"github.com/xkilldash9x/websec-cli/api/schemas"
)

// RiskBand buckets a risk score for display. Higher scores are more secure.
type RiskBand string

const (
	BandSecure   RiskBand = "secure"
	BandModerate RiskBand = "moderate"
	BandElevated RiskBand = "elevated"
	BandCritical RiskBand = "critical"
)

// BandFor maps a 0-100 risk score to its band.
func BandFor(score int) RiskBand {
	switch {
	case score >= 90:
		return BandSecure
	case score >= 70:
		return BandModerate
	case score >= 50:
		return BandElevated
	default:
		return BandCritical
	}
}

// SeverityCounts tallies findings per severity. Every severity has an entry.
func SeverityCounts(result *schemas.ScanResult) map[schemas.Severity]int {
	counts := make(map[schemas.Severity]int, len(schemas.Severities))
	for _, sev := range schemas.Severities {
		counts[sev] = 0
	}
	if result == nil {
		return counts
	}
	for _, v := range result.Vulnerabilities {
		counts[v.Severity]++
	}
	return counts
}

// Prioritize returns a copy of the findings ordered most severe first. Ties
// keep their reported order.
func Prioritize(vulns []schemas.Vulnerability) []schemas.Vulnerability {
	sorted := make([]schemas.Vulnerability, len(vulns))
	copy(sorted, vulns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
	})
	return sorted
}

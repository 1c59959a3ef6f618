package schemas

import "strings"

// -- Finding Schemas --

// Severity represents the criticality of a finding. The values are title-cased
// to match the structured output the analysis engine is asked to produce.
type Severity string

// Constants defining the closed set of severity levels.
const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
)

// Severities lists every severity, most critical first.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// Rank orders severities so that Critical > High > Medium > Low > Info.
// Unknown values rank below Info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// ParseSeverity matches a severity case-insensitively.
func ParseSeverity(s string) (Severity, bool) {
	for _, sev := range Severities {
		if strings.EqualFold(strings.TrimSpace(s), string(sev)) {
			return sev, true
		}
	}
	return "", false
}

// Vulnerability is a single reported weakness. Apart from Severity and ID every
// field is opaque text produced upstream.
type Vulnerability struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	// AffectedURL holds a URL for url scans or a file path for code scans.
	AffectedURL    string `json:"affectedUrl"`
	Impact         string `json:"impact"`
	FixCode        string `json:"fixCode"`
	FixExplanation string `json:"fixExplanation"`
	// ProofOfConcept is a copy-pasteable command or payload.
	ProofOfConcept string `json:"proofOfConcept"`
	CWE            string `json:"cwe,omitempty"`
}

// HeaderStatus is the upstream assessment of a security header.
type HeaderStatus string

const (
	HeaderSecure  HeaderStatus = "secure"
	HeaderWarning HeaderStatus = "warning"
	HeaderMissing HeaderStatus = "missing"
)

// ParseHeaderStatus matches a header status case-insensitively.
func ParseHeaderStatus(s string) (HeaderStatus, bool) {
	for _, st := range []HeaderStatus{HeaderSecure, HeaderWarning, HeaderMissing} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, true
		}
	}
	return "", false
}

// SecurityHeader is one HTTP response header assessment.
type SecurityHeader struct {
	Name   string       `json:"name"`
	Value  string       `json:"value"`
	Status HeaderStatus `json:"status"`
}

// TechCategory classifies a fingerprinted technology.
type TechCategory string

const (
	TechFrontend TechCategory = "Frontend"
	TechBackend  TechCategory = "Backend"
	TechDatabase TechCategory = "Database"
	TechServer   TechCategory = "Server"
	TechOther    TechCategory = "Other"
)

// ParseTechCategory matches a technology category case-insensitively.
func ParseTechCategory(s string) (TechCategory, bool) {
	for _, c := range []TechCategory{TechFrontend, TechBackend, TechDatabase, TechServer, TechOther} {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, true
		}
	}
	return "", false
}

// TechStackItem is a technology fingerprint.
type TechStackItem struct {
	Name     string       `json:"name"`
	Category TechCategory `json:"category"`
	Version  string       `json:"version,omitempty"`
}

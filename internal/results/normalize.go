// File: internal/results/normalize.go
package results

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/llmutil"
)

var (
	ErrEmptyResponse   = errors.New("Analysis Engine returned empty response.")
	ErrMalformedOutput = errors.New("Failed to parse Analysis Report. Engine output was malformed.")
)

// maxTargetRunes is the display width of a report target.
const maxTargetRunes = 50

// RawScanResult mirrors ScanResult as the engine emits it. Pointers and nil
// slices distinguish absent fields from zero values, and numbers are floats
// because the engine does not always produce integers.
type RawScanResult struct {
	Target            *string             `json:"target"`
	ScanType          *string             `json:"scanType"`
	SiteDescription   *string             `json:"siteDescription"`
	Summary           *string             `json:"summary"`
	RiskScore         *float64            `json:"riskScore"`
	SecurityMetrics   *RawSecurityMetrics `json:"securityMetrics"`
	OWASPDistribution []RawOWASPItem      `json:"owaspDistribution"`
	TechStack         []RawTechStackItem  `json:"techStack"`
	Vulnerabilities   []RawVulnerability  `json:"vulnerabilities"`
	Headers           []RawSecurityHeader `json:"headers"`
	Sitemap           []string            `json:"sitemap"`
	APIEndpoints      []string            `json:"apiEndpoints"`
	ExecutiveSummary  *string             `json:"executiveSummary"`
}

type RawSecurityMetrics struct {
	AuthScore       *float64 `json:"authScore"`
	DBScore         *float64 `json:"dbScore"`
	NetworkScore    *float64 `json:"networkScore"`
	ClientScore     *float64 `json:"clientScore"`
	ComplianceScore *float64 `json:"complianceScore"`
}

type RawOWASPItem struct {
	Category string  `json:"category"`
	Count    float64 `json:"count"`
}

type RawTechStackItem struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Version  string `json:"version"`
}

type RawVulnerability struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
	AffectedURL    string `json:"affectedUrl"`
	Impact         string `json:"impact"`
	FixCode        string `json:"fixCode"`
	FixExplanation string `json:"fixExplanation"`
	ProofOfConcept string `json:"proofOfConcept"`
	CWE            string `json:"cwe"`
}

type RawSecurityHeader struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Status string `json:"status"`
}

// Decode parses engine output into a RawScanResult. Fenced or chatty output is
// tolerated as long as it contains a JSON object.
func Decode(text string) (*RawScanResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}
	raw, err := llmutil.ParseJSONResponse[RawScanResult](text)
	if err != nil {
		return nil, &MalformedError{Cause: err}
	}
	return raw, nil
}

// MalformedError reports unparsable engine output. Its message is the fixed
// user-facing text; the parser failure stays reachable through Unwrap.
type MalformedError struct {
	Cause error
}

func (e *MalformedError) Error() string { return ErrMalformedOutput.Error() }

func (e *MalformedError) Unwrap() error { return e.Cause }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformedOutput }

// TruncateTarget shortens targets longer than 50 runes to 47 runes plus "...".
func TruncateTarget(target string) string {
	runes := []rune(target)
	if len(runes) <= maxTargetRunes {
		return target
	}
	return string(runes[:maxTargetRunes-3]) + "..."
}

// Normalize turns a decoded payload into a render-safe ScanResult. The caller's
// target and scan kind always win over whatever the payload claims.
func Normalize(raw *RawScanResult, target string, kind schemas.ScanKind) schemas.ScanResult {
	if raw == nil {
		raw = &RawScanResult{}
	}

	result := schemas.ScanResult{
		Target:            TruncateTarget(target),
		ScanType:          kind,
		SiteDescription:   deref(raw.SiteDescription),
		Summary:           deref(raw.Summary),
		RiskScore:         score(raw.RiskScore, 0),
		SecurityMetrics:   normalizeMetrics(raw.SecurityMetrics),
		OWASPDistribution: make([]schemas.OWASPItem, 0, len(raw.OWASPDistribution)),
		TechStack:         make([]schemas.TechStackItem, 0, len(raw.TechStack)),
		Vulnerabilities:   make([]schemas.Vulnerability, 0, len(raw.Vulnerabilities)),
		Headers:           make([]schemas.SecurityHeader, 0, len(raw.Headers)),
		Sitemap:           nonNil(raw.Sitemap),
		APIEndpoints:      nonNil(raw.APIEndpoints),
		ExecutiveSummary:  deref(raw.ExecutiveSummary),
	}

	for _, item := range raw.OWASPDistribution {
		count := int(math.Round(item.Count))
		if count < 0 {
			count = 0
		}
		result.OWASPDistribution = append(result.OWASPDistribution, schemas.OWASPItem{Category: item.Category, Count: count})
	}

	for _, tech := range raw.TechStack {
		category, ok := schemas.ParseTechCategory(tech.Category)
		if !ok {
			category = schemas.TechOther
		}
		result.TechStack = append(result.TechStack, schemas.TechStackItem{Name: tech.Name, Category: category, Version: tech.Version})
	}

	for i, v := range raw.Vulnerabilities {
		severity, ok := schemas.ParseSeverity(v.Severity)
		if !ok {
			severity = schemas.SeverityInfo
		}
		id := strings.TrimSpace(v.ID)
		if id == "" {
			id = fmt.Sprintf("VULN-%03d", i+1)
		}
		result.Vulnerabilities = append(result.Vulnerabilities, schemas.Vulnerability{
			ID:             id,
			Title:          v.Title,
			Severity:       severity,
			Description:    v.Description,
			AffectedURL:    v.AffectedURL,
			Impact:         v.Impact,
			FixCode:        v.FixCode,
			FixExplanation: v.FixExplanation,
			ProofOfConcept: v.ProofOfConcept,
			CWE:            v.CWE,
		})
	}

	for _, h := range raw.Headers {
		status, ok := schemas.ParseHeaderStatus(h.Status)
		if !ok {
			status = schemas.HeaderWarning
		}
		result.Headers = append(result.Headers, schemas.SecurityHeader{Name: h.Name, Value: h.Value, Status: status})
	}

	return result
}

func normalizeMetrics(raw *RawSecurityMetrics) schemas.SecurityMetrics {
	def := schemas.DefaultSecurityMetrics()
	if raw == nil {
		return def
	}
	return schemas.SecurityMetrics{
		AuthScore:       score(raw.AuthScore, def.AuthScore),
		DBScore:         score(raw.DBScore, def.DBScore),
		NetworkScore:    score(raw.NetworkScore, def.NetworkScore),
		ClientScore:     score(raw.ClientScore, def.ClientScore),
		ComplianceScore: score(raw.ComplianceScore, def.ComplianceScore),
	}
}

// score rounds v into 0..100, or returns fallback when v is absent or not a number.
func score(v *float64, fallback int) int {
	if v == nil || math.IsNaN(*v) {
		return fallback
	}
	return int(math.Max(0, math.Min(100, math.Round(*v))))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

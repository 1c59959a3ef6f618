// Package schemas holds the data model shared by the scanner, the history store,
// the chat session and the HTTP API.
package schemas

import (
	"errors"
	"strings"
)

// ScanKind distinguishes a black-box URL assessment from a white-box review of
// a pasted source snippet.
type ScanKind string

const (
	ScanKindURL  ScanKind = "url"
	ScanKindCode ScanKind = "code"
)

// Valid reports whether k is one of the known scan kinds.
func (k ScanKind) Valid() bool {
	return k == ScanKindURL || k == ScanKindCode
}

// SecurityMetrics is the fixed-shape sub-score record (each 0-100).
type SecurityMetrics struct {
	AuthScore       int `json:"authScore"`
	DBScore         int `json:"dbScore"`
	NetworkScore    int `json:"networkScore"`
	ClientScore     int `json:"clientScore"`
	ComplianceScore int `json:"complianceScore"`
}

// DefaultSecurityMetrics is substituted when the engine omits the metrics record.
func DefaultSecurityMetrics() SecurityMetrics {
	return SecurityMetrics{
		AuthScore:       80,
		DBScore:         80,
		NetworkScore:    80,
		ClientScore:     80,
		ComplianceScore: 80,
	}
}

// OWASPItem counts findings in a single OWASP Top 10 category.
type OWASPItem struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// ScanResult is a complete, render-safe report. After normalization every
// slice field is non-nil.
type ScanResult struct {
	Target            string           `json:"target"`
	ScanType          ScanKind         `json:"scanType"`
	SiteDescription   string           `json:"siteDescription"`
	Summary           string           `json:"summary"`
	RiskScore         int              `json:"riskScore"` // 100 is most secure
	SecurityMetrics   SecurityMetrics  `json:"securityMetrics"`
	OWASPDistribution []OWASPItem      `json:"owaspDistribution"`
	TechStack         []TechStackItem  `json:"techStack"`
	Vulnerabilities   []Vulnerability  `json:"vulnerabilities"`
	Headers           []SecurityHeader `json:"headers"`
	Sitemap           []string         `json:"sitemap"`
	APIEndpoints      []string         `json:"apiEndpoints"`
	ExecutiveSummary  string           `json:"executiveSummary"`
	// Timestamp is assigned by the history store when the result is saved.
	Timestamp string `json:"timestamp,omitempty"`
}

// ScanModule is a toggleable engagement technique. It only affects the
// progress narration and the prompt.
type ScanModule struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Module names that add dedicated narration lines.
const (
	ModuleNmap       = "Nmap Port Scanner"
	ModuleBurp       = "Burp Suite Pro"
	ModuleNuclei     = "Nuclei Templates"
	ModuleSubdomains = "Subdomain Enumerator"
)

// DefaultModules returns the module catalog with every module disabled.
func DefaultModules() []ScanModule {
	return []ScanModule{
		{Name: ModuleNmap},
		{Name: ModuleBurp},
		{Name: ModuleNuclei},
		{Name: ModuleSubdomains},
	}
}

var (
	ErrEmptyTarget     = errors.New("target URL is required")
	ErrEmptySource     = errors.New("source code is required")
	ErrInvalidURL      = errors.New("URL must start with http:// or https://")
	ErrInvalidScanKind = errors.New("scan type must be 'url' or 'code'")
)

// ScanRequest is a single scan submission.
type ScanRequest struct {
	Target   string       `json:"target"`
	ScanType ScanKind     `json:"scanType"`
	Modules  []ScanModule `json:"modules,omitempty"`
}

// Validate applies the submission rules of the scan form.
func (r ScanRequest) Validate() error {
	if !r.ScanType.Valid() {
		return ErrInvalidScanKind
	}
	if strings.TrimSpace(r.Target) == "" {
		if r.ScanType == ScanKindCode {
			return ErrEmptySource
		}
		return ErrEmptyTarget
	}
	if r.ScanType == ScanKindURL && !strings.HasPrefix(r.Target, "http") {
		return ErrInvalidURL
	}
	return nil
}

// ActiveModules returns the names of enabled modules in submission order.
func (r ScanRequest) ActiveModules() []string {
	active := make([]string, 0, len(r.Modules))
	for _, m := range r.Modules {
		if m.Enabled {
			active = append(active, m.Name)
		}
	}
	return active
}

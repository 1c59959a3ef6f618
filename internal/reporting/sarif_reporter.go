// internal/reporting/sarif_reporter.go
package reporting

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/observability"
	"github.com/xkilldash9x/websec-cli/internal/reporting/sarif"
	"github.com/xkilldash9x/websec-cli/internal/results"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "WebSec CLI"
	ToolInfoURI  = "https://github.com/xkilldash9x/websec-cli"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// resultFingerprintKey names the partial fingerprint used to track a finding across runs.
const resultFingerprintKey = "websecFinding/v1"

// ruleIDSanitizer keeps alphanumerics, underscore and dot. Every other run of
// characters collapses into a single hyphen.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// RuleFingerprint identifies a rule definition by its content.
type RuleFingerprint string

// calculateFingerprint hashes the defining characteristics of a finding.
func calculateFingerprint(v schemas.Vulnerability) RuleFingerprint {
	cwe, _ := results.CanonicalCWE(v.CWE)
	data := struct {
		Title          string
		Description    string
		FixExplanation string
		CWE            string
	}{
		Title:          v.Title,
		Description:    v.Description,
		FixExplanation: v.FixExplanation,
		CWE:            cwe,
	}

	h := sha1.New()
	_ = json.NewEncoder(h).Encode(data)
	return RuleFingerprint(hex.EncodeToString(h.Sum(nil)))
}

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0 format.
// It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and the maps.
	mu sync.Mutex
	// rulesByFingerprint maps a content fingerprint to the generated Rule ID.
	rulesByFingerprint map[RuleFingerprint]string
	// ruleIDUsage counts uses of a base Rule ID to suffix collisions.
	ruleIDUsage map[string]int
}

// NewSARIFReporter creates a new reporter that writes SARIF output.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string) *SARIFReporter {
	logger := observability.GetLogger().Named("sarif_reporter")
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						// Empty slices (not nil) so the JSON carries [].
						Rules: []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer:             writer,
		logger:             logger,
		log:                log,
		rulesByFingerprint: make(map[RuleFingerprint]string),
		ruleIDUsage:        make(map[string]int),
	}
}

// Write converts every vulnerability of a report into a SARIF result.
func (r *SARIFReporter) Write(result *schemas.ScanResult) error {
	if result == nil {
		return nil
	}
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	for _, v := range result.Vulnerabilities {
		ruleID := r.ensureRule(v)

		messageText := v.Description
		if messageText == "" {
			messageText = v.Title
		}

		props := sarif.PropertyBag{
			"severity":  string(v.Severity),
			"riskScore": result.RiskScore,
		}
		if v.ID != "" {
			props["findingId"] = v.ID
		}
		if result.Timestamp != "" {
			props["scannedAt"] = result.Timestamp
		}
		if v.ProofOfConcept != "" {
			props["proofOfConcept"] = v.ProofOfConcept
		}

		run.Results = append(run.Results, &sarif.Result{
			RuleID:    ruleID,
			Message:   &sarif.Message{Text: pString(messageText)},
			Level:     mapSeverityToSARIFLevel(v.Severity),
			Locations: r.createLocations(result, v),
			PartialFingerprints: map[string]string{
				resultFingerprintKey: resultFingerprint(ruleID, locationURI(result, v)),
			},
			Properties: &props,
		})
	}
	if run.AutomationDetails == nil && result.ScanType != "" {
		run.AutomationDetails = &sarif.AutomationDetails{ID: "websec/" + string(result.ScanType) + "/"}
	}

	if n := len(result.Vulnerabilities); n > 0 {
		r.logger.Debug("Wrote findings to SARIF buffer",
			zap.Int("findings_count", n),
			zap.Duration("duration_ms", time.Since(startTime)),
		)
	}
	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	r.logger.Debug("Finalizing SARIF report",
		zap.Int("total_results", len(run.Results)),
		zap.Int("total_rules", len(run.Tool.Driver.Rules)),
	)

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")

	encodeErr := encoder.Encode(r.log)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log to JSON", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// sanitizeRuleName creates a standardized base name for the rule ID.
func sanitizeRuleName(name string) string {
	if name == "" {
		return "UNNAMED-VULNERABILITY"
	}
	sanitized := strings.ToUpper(name)
	sanitized = ruleIDSanitizer.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		return "UNKNOWN-VULNERABILITY"
	}
	return sanitized
}

// ensureRule returns the rule ID for the finding, registering a new rule on
// first sight. Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(v schemas.Vulnerability) string {
	fingerprint := calculateFingerprint(v)
	if ruleID, exists := r.rulesByFingerprint[fingerprint]; exists {
		return ruleID
	}

	baseRuleID := "WEBSEC-" + sanitizeRuleName(v.Title)
	usageCount := r.ruleIDUsage[baseRuleID]
	r.ruleIDUsage[baseRuleID] = usageCount + 1

	finalRuleID := baseRuleID
	if usageCount > 0 {
		finalRuleID = fmt.Sprintf("%s-%d", baseRuleID, usageCount)
		r.logger.Debug("Rule ID collision detected, generated new ID with suffix",
			zap.String("base_id", baseRuleID),
			zap.String("final_id", finalRuleID),
		)
	}

	markdownHelp := fmt.Sprintf("**Vulnerability:** %s\n\n**Impact:**\n%s\n\n**Remediation:**\n%s",
		v.Title, v.Impact, v.FixExplanation)
	if v.FixCode != "" {
		markdownHelp += "\n\n```\n" + v.FixCode + "\n```"
	}

	props := sarif.PropertyBag{
		"tags":      []string{"security", "websec"},
		"precision": "medium",
	}
	if cwe, ok := results.LookupCWE(v.CWE); ok {
		props["CWE"] = []string{cwe.ID}
		if cwe.Name != "" {
			props["cweName"] = cwe.Name
		}
	}

	driver := r.log.Runs[0].Tool.Driver
	driver.Rules = append(driver.Rules, &sarif.ReportingDescriptor{
		ID:               finalRuleID,
		Name:             pString(v.Title),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(v.Title)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(v.Description)},
		Help: &sarif.MultiformatMessageString{
			Text:     pString(v.FixExplanation),
			Markdown: pString(markdownHelp),
		},
		Properties: &props,
	})
	r.rulesByFingerprint[fingerprint] = finalRuleID
	return finalRuleID
}

// createLocations points at the affected URL or file, falling back to the scan target.
func (r *SARIFReporter) createLocations(result *schemas.ScanResult, v schemas.Vulnerability) []*sarif.Location {
	uri := locationURI(result, v)
	return []*sarif.Location{{
		PhysicalLocation: &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{URI: pString(uri)},
		},
		Message: &sarif.Message{Text: pString("Vulnerability found at " + uri)},
	}}
}

func locationURI(result *schemas.ScanResult, v schemas.Vulnerability) string {
	if v.AffectedURL != "" {
		return v.AffectedURL
	}
	return result.Target
}

// resultFingerprint is stable across rescans of the same finding at the same place.
func resultFingerprint(ruleID, uri string) string {
	h := sha1.New()
	h.Write([]byte(ruleID))
	h.Write([]byte{0})
	h.Write([]byte(uri))
	return hex.EncodeToString(h.Sum(nil))
}

// mapSeverityToSARIFLevel converts a severity to the SARIF standard.
func mapSeverityToSARIFLevel(severity schemas.Severity) sarif.Level {
	switch severity {
	case schemas.SeverityCritical, schemas.SeverityHigh:
		return sarif.LevelError
	case schemas.SeverityMedium:
		return sarif.LevelWarning
	default:
		return sarif.LevelNote
	}
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}

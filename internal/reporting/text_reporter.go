package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/results"
)

// palette holds the colors of one TextReporter so colorization can be toggled
// per output instead of globally.
type palette struct {
	title, label, dim, good, warn, bad, critical *color.Color
}

func newPalette(colorize bool) palette {
	p := palette{
		title:    color.New(color.FgHiYellow, color.Bold),
		label:    color.New(color.FgCyan),
		dim:      color.New(color.FgHiBlack),
		good:     color.New(color.FgGreen),
		warn:     color.New(color.FgYellow),
		bad:      color.New(color.FgRed),
		critical: color.New(color.FgHiRed, color.Bold),
	}
	for _, c := range []*color.Color{p.title, p.label, p.dim, p.good, p.warn, p.bad, p.critical} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s schemas.Severity) *color.Color {
	switch s {
	case schemas.SeverityCritical:
		return p.critical
	case schemas.SeverityHigh:
		return p.bad
	case schemas.SeverityMedium:
		return p.warn
	case schemas.SeverityLow:
		return p.label
	default:
		return p.dim
	}
}

func (p palette) band(b results.RiskBand) *color.Color {
	switch b {
	case results.BandSecure:
		return p.good
	case results.BandModerate:
		return p.warn
	case results.BandElevated:
		return p.bad
	default:
		return p.critical
	}
}

func (p palette) header(s schemas.HeaderStatus) *color.Color {
	switch s {
	case schemas.HeaderSecure:
		return p.good
	case schemas.HeaderMissing:
		return p.bad
	default:
		return p.warn
	}
}

// TextReporter renders reports for a terminal.
type TextReporter struct {
	mu     sync.Mutex
	writer io.WriteCloser
	colors palette
}

// NewTextReporter creates a reporter writing human readable reports to writer.
func NewTextReporter(writer io.WriteCloser, colorize bool) *TextReporter {
	return &TextReporter{writer: writer, colors: newPalette(colorize)}
}

// Write renders one report immediately.
func (r *TextReporter) Write(result *schemas.ScanResult) error {
	if result == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var sb strings.Builder
	r.render(&sb, result)
	if _, err := io.WriteString(r.writer, sb.String()); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (r *TextReporter) Close() error {
	return r.writer.Close()
}

func (r *TextReporter) section(sb *strings.Builder, name string) {
	sb.WriteString("\n")
	sb.WriteString(r.colors.title.Sprint(name))
	sb.WriteString("\n")
}

func (r *TextReporter) field(sb *strings.Builder, name, value string) {
	fmt.Fprintf(sb, "  %s %s\n", r.colors.label.Sprintf("%-12s", name+":"), value)
}

func (r *TextReporter) render(sb *strings.Builder, res *schemas.ScanResult) {
	c := r.colors
	sb.WriteString(c.title.Sprint("== WebSec Security Report =="))
	sb.WriteString("\n")

	r.field(sb, "Target", res.Target)
	r.field(sb, "Scan type", strings.ToUpper(string(res.ScanType)))
	if res.Timestamp != "" {
		r.field(sb, "Scanned", res.Timestamp)
	}
	band := results.BandFor(res.RiskScore)
	r.field(sb, "Risk score", c.band(band).Sprintf("%d/100 (%s)", res.RiskScore, strings.ToUpper(string(band))))

	if res.SiteDescription != "" {
		r.section(sb, "Site")
		fmt.Fprintf(sb, "  %s\n", res.SiteDescription)
	}
	if res.Summary != "" {
		r.section(sb, "Summary")
		fmt.Fprintf(sb, "  %s\n", res.Summary)
	}

	r.section(sb, "Security Metrics")
	m := res.SecurityMetrics
	for _, kv := range []struct {
		name  string
		score int
	}{
		{"Auth", m.AuthScore},
		{"Database", m.DBScore},
		{"Network", m.NetworkScore},
		{"Client", m.ClientScore},
		{"Compliance", m.ComplianceScore},
	} {
		r.field(sb, kv.name, c.band(results.BandFor(kv.score)).Sprintf("%3d", kv.score))
	}

	if len(res.OWASPDistribution) > 0 {
		r.section(sb, "OWASP Top 10")
		for _, o := range res.OWASPDistribution {
			fmt.Fprintf(sb, "  %-45s %d\n", o.Category, o.Count)
		}
	}

	if len(res.TechStack) > 0 {
		r.section(sb, "Tech Stack")
		for _, t := range res.TechStack {
			name := t.Name
			if t.Version != "" {
				name += " " + t.Version
			}
			fmt.Fprintf(sb, "  %s %s\n", name, c.dim.Sprintf("(%s)", t.Category))
		}
	}

	if len(res.Headers) > 0 {
		r.section(sb, "Security Headers")
		for _, h := range res.Headers {
			fmt.Fprintf(sb, "  %s %s: %s\n", c.header(h.Status).Sprintf("[%-7s]", h.Status), h.Name, h.Value)
		}
	}

	counts := results.SeverityCounts(res)
	parts := make([]string, 0, len(schemas.Severities))
	for _, sev := range schemas.Severities {
		if counts[sev] > 0 {
			parts = append(parts, c.severity(sev).Sprintf("%d %s", counts[sev], sev))
		}
	}
	heading := fmt.Sprintf("Findings (%d)", len(res.Vulnerabilities))
	r.section(sb, heading)
	if len(parts) > 0 {
		fmt.Fprintf(sb, "  %s\n", strings.Join(parts, ", "))
	} else {
		sb.WriteString(c.good.Sprint("  No vulnerabilities reported."))
		sb.WriteString("\n")
	}

	for _, v := range results.Prioritize(res.Vulnerabilities) {
		sb.WriteString("\n")
		fmt.Fprintf(sb, "  %s %s %s\n",
			c.severity(v.Severity).Sprintf("[%s]", strings.ToUpper(string(v.Severity))),
			c.dim.Sprint(v.ID),
			v.Title)
		if cwe, ok := results.LookupCWE(v.CWE); ok {
			fmt.Fprintf(sb, "    %s %s\n", c.dim.Sprint(cwe.ID), c.dim.Sprint(cwe.Name))
		} else if v.CWE != "" {
			fmt.Fprintf(sb, "    %s\n", c.dim.Sprint(v.CWE))
		}
		writeIndented(sb, c.label.Sprint("Location: ")+v.AffectedURL, "    ")
		writeIndented(sb, v.Description, "    ")
		if v.Impact != "" {
			writeIndented(sb, c.label.Sprint("Impact: ")+v.Impact, "    ")
		}
		if v.ProofOfConcept != "" {
			writeIndented(sb, c.label.Sprint("PoC:"), "    ")
			writeIndented(sb, v.ProofOfConcept, "      ")
		}
		if v.FixExplanation != "" {
			writeIndented(sb, c.label.Sprint("Fix: ")+v.FixExplanation, "    ")
		}
		if v.FixCode != "" {
			writeIndented(sb, v.FixCode, "      ")
		}
	}

	if len(res.Sitemap) > 0 {
		r.section(sb, "Sitemap")
		for _, p := range res.Sitemap {
			fmt.Fprintf(sb, "  %s\n", p)
		}
	}
	if len(res.APIEndpoints) > 0 {
		r.section(sb, "API Endpoints")
		for _, p := range res.APIEndpoints {
			fmt.Fprintf(sb, "  %s\n", p)
		}
	}
	if res.ExecutiveSummary != "" {
		r.section(sb, "Executive Summary")
		writeIndented(sb, res.ExecutiveSummary, "  ")
	}
	sb.WriteString("\n")
}

func writeIndented(sb *strings.Builder, text, indent string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		sb.WriteString(indent)
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

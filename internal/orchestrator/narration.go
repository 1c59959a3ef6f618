package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/websec-cli/api/schemas"
)

// Step is one line of the progress narration followed by a pause. A step with
// an empty Line is a silent pause.
type Step struct {
	Line  string
	Delay time.Duration
}

const (
	LineSuccess = "SUCCESS: Analysis Complete. Generating Executive Report."
	LineFailure = "CRITICAL_FAILURE: Engine timeout or API rejection."

	// settleDelay separates the success line from the report becoming visible.
	settleDelay = 500 * time.Millisecond
)

// Narration returns the fixed progress script for a scan. The order is
// stable and only the module-specific lines depend on activeModules.
func Narration(target string, kind schemas.ScanKind, activeModules []string) []Step {
	steps := []Step{{
		Line:  fmt.Sprintf("TARGET_ACQUIRED: %s... [Type: %s]", firstRunes(target, 30), strings.ToUpper(string(kind))),
		Delay: 600 * time.Millisecond,
	}}

	if len(activeModules) > 0 {
		steps = append(steps, Step{
			Line:  "MODULES_ENGAGED: " + strings.Join(activeModules, ", "),
			Delay: 600 * time.Millisecond,
		})
	}

	if kind == schemas.ScanKindURL {
		steps = append(steps, Step{Line: "INITIATING_HANDSHAKE: SSL/TLS Negotiation & Certificate Pinning check...", Delay: 800 * time.Millisecond})
		if contains(activeModules, schemas.ModuleNmap) {
			steps = append(steps, Step{Line: "NMAP_SCRIPT_ENGINE: Scanning top 1000 ports (TCP/SYN)...", Delay: 1200 * time.Millisecond})
		}
		steps = append(steps, Step{Line: "THREAT_INTEL: Querying CVE Databases for known domain signatures...", Delay: 800 * time.Millisecond})
	} else {
		steps = append(steps, Step{Line: "PARSING_SYNTAX: Building Abstract Syntax Tree (AST)...", Delay: 800 * time.Millisecond})
	}

	steps = append(steps, Step{Delay: time.Second})

	if contains(activeModules, schemas.ModuleBurp) {
		steps = append(steps, Step{Line: "BURP_REPEATER: Fuzzing parameters for SQLi/XSS...", Delay: time.Second})
	}

	return append(steps,
		Step{Line: "LOGIC_PROBE: Analyzing Authentication & IDOR vulnerability surfaces...", Delay: 1500 * time.Millisecond},
		Step{Line: "VALIDATION: Cross-referencing findings with false-positive reduction filter..."},
	)
}

// TotalDelay sums the pauses of a narration plan.
func TotalDelay(steps []Step) time.Duration {
	var total time.Duration
	for _, s := range steps {
		total += s.Delay
	}
	return total
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

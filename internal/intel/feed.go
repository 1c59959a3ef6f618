// Package intel serves the curated feed of high-profile advisories shown
// alongside scan results.
package intel

import (
	"sort"
	"strings"
)

// Advisory is one verified, publicly disclosed vulnerability.
type Advisory struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Severity    string   `json:"severity"`
	Score       float64  `json:"score"` // CVSS base score
	Date        string   `json:"date"`  // YYYY-MM-DD
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

var advisories = []Advisory{
	{
		ID:          "CVE-2024-3094",
		Title:       "XZ Utils Backdoor (Supply Chain)",
		Severity:    "CRITICAL",
		Score:       10.0,
		Date:        "2024-03-29",
		Category:    "Supply Chain",
		Description: "Malicious code was discovered in the upstream tarballs of xz (5.6.0+). The build process extracts a prebuilt object file from a disguised test file, allowing unauthorized SSH access.",
		Tags:        []string{"Linux", "SSH", "RCE"},
	},
	{
		ID:          "CVE-2024-21413",
		Title:       "Microsoft Outlook RCE (Moniker Link)",
		Severity:    "HIGH",
		Score:       9.8,
		Date:        "2024-02-14",
		Category:    "Application",
		Description: `An attacker who successfully exploited this vulnerability could bypass the Office Protected View and open "editing mode", leading to RCE via the preview pane.`,
		Tags:        []string{"Windows", "Office", "Moniker Link"},
	},
	{
		ID:          "CVE-2023-4863",
		Title:       "WebP Heap Buffer Overflow",
		Severity:    "CRITICAL",
		Score:       8.8,
		Date:        "2023-09-12",
		Category:    "Browser",
		Description: "Heap buffer overflow in libwebp in Google Chrome allowed a remote attacker to perform an out of bounds memory write via a crafted HTML page.",
		Tags:        []string{"Chrome", "WebP", "Overflow"},
	},
	{
		ID:          "CVE-2024-27198",
		Title:       "JetBrains TeamCity Auth Bypass",
		Severity:    "CRITICAL",
		Score:       9.8,
		Date:        "2024-03-04",
		Category:    "DevOps",
		Description: "An authentication bypass vulnerability in the web component of TeamCity allowing an unauthenticated attacker to execute code as an administrator.",
		Tags:        []string{"CI/CD", "Java", "Auth Bypass"},
	},
}

// Feed returns every advisory, newest first.
func Feed() []Advisory {
	out := make([]Advisory, len(advisories))
	for i, a := range advisories {
		out[i] = clone(a)
	}
	// ISO dates sort lexically.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// Lookup finds an advisory by CVE id, ignoring case.
func Lookup(id string) (Advisory, bool) {
	id = strings.TrimSpace(id)
	for _, a := range advisories {
		if strings.EqualFold(a.ID, id) {
			return clone(a), true
		}
	}
	return Advisory{}, false
}

// Filter returns the advisories scoring at least minScore, newest first.
func Filter(minScore float64) []Advisory {
	var out []Advisory
	for _, a := range Feed() {
		if a.Score >= minScore {
			out = append(out, a)
		}
	}
	if out == nil {
		out = []Advisory{}
	}
	return out
}

func clone(a Advisory) Advisory {
	a.Tags = append([]string(nil), a.Tags...)
	return a
}

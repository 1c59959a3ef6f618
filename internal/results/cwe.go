// internal/results/cwe.go
package results

import (
	"regexp"
	"strings"
)

// CWEEntry holds details about a specific CWE.
type CWEEntry struct {
	ID   string
	Name string
}

var cweIDRegex = regexp.MustCompile(`(?i)^\s*(?:CWE)?[-\s:]*(\d+)`)

// cweCatalog covers the weaknesses the engine reports most often.
var cweCatalog = map[string]string{
	"CWE-20":   "Improper Input Validation",
	"CWE-22":   "Improper Limitation of a Pathname to a Restricted Directory ('Path Traversal')",
	"CWE-78":   "Improper Neutralization of Special Elements used in an OS Command ('OS Command Injection')",
	"CWE-79":   "Improper Neutralization of Input During Web Page Generation ('Cross-site Scripting')",
	"CWE-89":   "Improper Neutralization of Special Elements used in an SQL Command ('SQL Injection')",
	"CWE-94":   "Improper Control of Generation of Code ('Code Injection')",
	"CWE-200":  "Exposure of Sensitive Information to an Unauthorized Actor",
	"CWE-287":  "Improper Authentication",
	"CWE-319":  "Cleartext Transmission of Sensitive Information",
	"CWE-347":  "Improper Verification of Cryptographic Signature",
	"CWE-352":  "Cross-Site Request Forgery (CSRF)",
	"CWE-502":  "Deserialization of Untrusted Data",
	"CWE-521":  "Weak Password Requirements",
	"CWE-601":  "URL Redirection to Untrusted Site ('Open Redirect')",
	"CWE-611":  "Improper Restriction of XML External Entity Reference",
	"CWE-639":  "Authorization Bypass Through User-Controlled Key",
	"CWE-693":  "Protection Mechanism Failure",
	"CWE-798":  "Use of Hard-coded Credentials",
	"CWE-918":  "Server-Side Request Forgery (SSRF)",
	"CWE-943":  "Improper Neutralization of Special Elements in Data Query Logic",
	"CWE-1021": "Improper Restriction of Rendered UI Layers or Frames",
}

// CanonicalCWE extracts "CWE-<n>" from loosely formatted classifiers such as
// "cwe 89", "89" or "CWE-89: SQL Injection". It reports false when no number
// is present.
func CanonicalCWE(raw string) (string, bool) {
	m := cweIDRegex.FindStringSubmatch(raw)
	if len(m) < 2 {
		return "", false
	}
	n := strings.TrimLeft(m[1], "0")
	if n == "" {
		return "", false
	}
	return "CWE-" + n, true
}

// LookupCWE resolves a classifier against the local catalog. Unknown ids still
// return an entry with the canonical id and an empty name.
func LookupCWE(raw string) (CWEEntry, bool) {
	id, ok := CanonicalCWE(raw)
	if !ok {
		return CWEEntry{}, false
	}
	return CWEEntry{ID: id, Name: cweCatalog[id]}, true
}

package llmclient

import (
	"google.golang.org/genai"

	"github.com/xkilldash9x/websec-cli/api/schemas"
)

func str() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }

func num() *genai.Schema { return &genai.Schema{Type: genai.TypeNumber} }

func enum(values ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Enum: values}
}

func arrayOf(items *genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: items}
}

func severityValues() []string {
	out := make([]string, len(schemas.Severities))
	for i, s := range schemas.Severities {
		out[i] = string(s)
	}
	return out
}

// scanResultSchema constrains the structured report produced for a scan.
func scanResultSchema() *genai.Schema {
	vulnerability := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"id":             str(),
			"title":          str(),
			"severity":       enum(severityValues()...),
			"description":    str(),
			"affectedUrl":    str(),
			"impact":         str(),
			"fixCode":        str(),
			"fixExplanation": str(),
			"proofOfConcept": str(),
			"cwe":            str(),
		},
		Required: []string{"id", "title", "severity", "description", "affectedUrl", "impact", "fixCode", "fixExplanation", "proofOfConcept"},
	}
	tech := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":     str(),
			"category": enum("Frontend", "Backend", "Database", "Server", "Other"),
			"version":  str(),
		},
		Required: []string{"name", "category"},
	}
	header := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":   str(),
			"value":  str(),
			"status": enum("secure", "warning", "missing"),
		},
		Required: []string{"name", "value", "status"},
	}
	metrics := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"authScore":       num(),
			"dbScore":         num(),
			"networkScore":    num(),
			"clientScore":     num(),
			"complianceScore": num(),
		},
		Required: []string{"authScore", "dbScore", "networkScore", "clientScore", "complianceScore"},
	}
	owasp := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"category": str(),
			"count":    num(),
		},
		Required: []string{"category", "count"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"target":            str(),
			"scanType":          enum(string(schemas.ScanKindURL), string(schemas.ScanKindCode)),
			"siteDescription":   str(),
			"summary":           str(),
			"riskScore":         num(),
			"securityMetrics":   metrics,
			"owaspDistribution": arrayOf(owasp),
			"techStack":         arrayOf(tech),
			"vulnerabilities":   arrayOf(vulnerability),
			"headers":           arrayOf(header),
			"sitemap":           arrayOf(str()),
			"apiEndpoints":      arrayOf(str()),
			"executiveSummary":  str(),
		},
		Required: []string{"target", "scanType", "siteDescription", "summary", "riskScore", "securityMetrics",
			"owaspDistribution", "techStack", "vulnerabilities", "headers", "sitemap", "apiEndpoints", "executiveSummary"},
	}
}

var registeredSchemas = map[string]func() *genai.Schema{
	schemas.ResponseSchemaScanResult: scanResultSchema,
}

// LookupSchema returns a fresh copy of a registered structured-output schema.
func LookupSchema(name string) (*genai.Schema, bool) {
	build, ok := registeredSchemas[name]
	if !ok {
		return nil, false
	}
	return build(), true
}

// Package sarif holds the subset of the SARIF 2.1.0 object model that scan
// reports are exported to. Optional properties are pointers or omitempty.
package sarif

// Log is the top-level SARIF document.
type Log struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []*Run `json:"runs"`
}

// Run groups the results produced by one tool.
type Run struct {
	Tool              *Tool              `json:"tool"`
	AutomationDetails *AutomationDetails `json:"automationDetails,omitempty"`
	Results           []*Result          `json:"results"`
}

// AutomationDetails lets code scanning dashboards tell runs of different
// categories apart.
type AutomationDetails struct {
	ID string `json:"id"`
}

type Tool struct {
	Driver *ToolComponent `json:"driver"`
}

// ToolComponent names the analyzer and carries its rule catalog.
type ToolComponent struct {
	Name           string                 `json:"name"`
	Version        *string                `json:"version,omitempty"`
	InformationURI *string                `json:"informationUri,omitempty"`
	Rules          []*ReportingDescriptor `json:"rules,omitempty"`
}

// ReportingDescriptor is a rule: one distinct kind of finding.
type ReportingDescriptor struct {
	ID               string                    `json:"id"`
	Name             *string                   `json:"name,omitempty"`
	ShortDescription *MultiformatMessageString `json:"shortDescription,omitempty"`
	FullDescription  *MultiformatMessageString `json:"fullDescription,omitempty"`
	Help             *MultiformatMessageString `json:"help,omitempty"`
	Properties       *PropertyBag              `json:"properties,omitempty"`
}

// Result is one finding at one location.
type Result struct {
	RuleID              string            `json:"ruleId"`
	Message             *Message          `json:"message"`
	Level               Level             `json:"level,omitempty"`
	Locations           []*Location       `json:"locations,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          *PropertyBag      `json:"properties,omitempty"`
}

type Location struct {
	PhysicalLocation *PhysicalLocation `json:"physicalLocation,omitempty"`
	Message          *Message          `json:"message,omitempty"`
}

type PhysicalLocation struct {
	ArtifactLocation *ArtifactLocation `json:"artifactLocation,omitempty"`
}

// ArtifactLocation is a URL for web findings or a file name for code findings.
type ArtifactLocation struct {
	URI *string `json:"uri,omitempty"`
}

type Message struct {
	Text *string `json:"text,omitempty"`
}

type MultiformatMessageString struct {
	Text     *string `json:"text"`
	Markdown *string `json:"markdown,omitempty"`
}

type PropertyBag map[string]interface{}

// Level is the SARIF severity of a result.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
)

package schemas

import (
	"context"
	"time"
)

// -- LLM Schemas & Interface --

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Used for conversational replies.
	TierPowerful ModelTier = "powerful" // Used for report generation.
)

// ResponseSchemaScanResult names the structured output schema for scan reports.
const ResponseSchemaScanResult = "scan_result"

// GenerationOptions provides detailed parameters to control the text generation
// process of the LLM.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	// ResponseSchema names a registered structured-output schema. Only honored
	// when ForceJSONFormat is set.
	ResponseSchema string `json:"response_schema,omitempty"`
}

// GenerationRequest encapsulates a complete request to the LLM.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider (e.g., Gemini).
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}

// -- Chat Schemas --

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleUser ChatRole = "user"
	RoleAI   ChatRole = "ai"
)

// ChatMessage is one entry of the append-only chat transcript.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

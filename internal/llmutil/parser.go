// internal/llmutil/parser.go
package llmutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/json-iterator/go/extra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Models drift on scalar types ("id": 1, "riskScore": "72"). Fuzzy decoders
// coerce numbers and strings into each other instead of failing the payload.
// The registration is process-wide for jsoniter.
func init() {
	extra.RegisterFuzzyDecoders()
}

// ErrNoJSON is returned when a response carries no JSON object or array at all.
var ErrNoJSON = errors.New("no JSON structure found in LLM response")

var (
	// Backticks are written as \x60 because Go raw strings cannot contain them.

	// fencedObjectRegex extracts a JSON object wrapped in a markdown fence.
	fencedObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json|JSON)?\\s*({.*})\\s*\x60\x60\x60")
	// fencedArrayRegex extracts a JSON array wrapped in a markdown fence.
	fencedArrayRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json|JSON)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
)

// ExtractJSON isolates the JSON payload of an LLM response. Markdown fences and
// conversational text before or after the structure are discarded. Objects
// are preferred over arrays.
func ExtractJSON(response string) (string, error) {
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[") {
		return response, nil
	}

	if m := fencedObjectRegex.FindStringSubmatch(response); len(m) > 1 {
		return m[1], nil
	}
	if m := fencedArrayRegex.FindStringSubmatch(response); len(m) > 1 {
		return m[1], nil
	}

	if s, ok := between(response, "{", "}"); ok {
		return s, nil
	}
	if s, ok := between(response, "[", "]"); ok {
		return s, nil
	}
	return "", ErrNoJSON
}

func between(s, open, close string) (string, bool) {
	first := strings.Index(s, open)
	last := strings.LastIndex(s, close)
	if first == -1 || last <= first {
		return "", false
	}
	return s[first : last+1], true
}

// ParseJSONResponse parses an LLM response into T, tolerating the formatting
// noise handled by ExtractJSON.
func ParseJSONResponse[T any](response string) (*T, error) {
	payload, err := ExtractJSON(response)
	if err != nil {
		return nil, err
	}

	var result T
	if err := json.UnmarshalFromString(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(payload, 500))
	}
	return &result, nil
}

// truncateString shortens s to at most maxLen runes for error messages.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/config"
)

// ErrMissingAPIKey is returned when no Gemini credential is configured.
var ErrMissingAPIKey = errors.New("API Key is missing")

// NewClient builds the tiered LLM client described by the configuration.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}

	fast, err := NewGeminiClient(ctx, cfg.Model(cfg.DefaultFastModel), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fast tier client: %w", err)
	}

	// Both tiers usually name the same model; share the client then.
	var powerful schemas.LLMClient = fast
	if cfg.DefaultPowerfulModel != cfg.DefaultFastModel {
		powerful, err = NewGeminiClient(ctx, cfg.Model(cfg.DefaultPowerfulModel), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize powerful tier client: %w", err)
		}
	}

	return NewLLMRouter(logger, fast, powerful)
}

// unavailableClient stands in when the credential is missing so that views
// which never call the model keep working.
type unavailableClient struct {
	err error
}

// Unavailable returns an LLMClient whose Generate always fails with err.
func Unavailable(err error) schemas.LLMClient {
	return unavailableClient{err: err}
}

func (u unavailableClient) Generate(context.Context, schemas.GenerationRequest) (string, error) {
	return "", u.err
}

func (u unavailableClient) Close() error { return nil }

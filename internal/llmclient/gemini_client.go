// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/config"
)

// GeminiClient implements schemas.LLMClient on top of the Gemini API.
type GeminiClient struct {
	client     *genai.Client
	httpClient *http.Client
	logger     *zap.Logger
	config     config.LLMModelConfig
	limiter    *rate.Limiter
	// backoffFactory builds the retry policy for a single Generate call.
	backoffFactory func() backoff.BackOff
}

var _ schemas.LLMClient = (*GeminiClient)(nil)

// NewGeminiClient initializes the client. An empty API key yields ErrMissingAPIKey.
func NewGeminiClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	httpClient := &http.Client{Timeout: cfg.APITimeout}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(cfg.RequestsPerMinute / 60.0)
	}

	maxElapsed := cfg.MaxRetryElapsed
	if maxElapsed <= 0 {
		maxElapsed = 2 * time.Minute
	}

	return &GeminiClient{
		client:     client,
		httpClient: httpClient,
		config:     cfg,
		logger:     logger.Named("llm_client.gemini"),
		limiter:    rate.NewLimiter(limit, 1),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = maxElapsed
			b.MaxInterval = 30 * time.Second
			return b
		},
	}, nil
}

// Generate sends the prompts to the Gemini API and returns the generated text.
// Rate limiting applies once per call; transient API failures are retried.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	genConfig, err := c.buildConfig(req)
	if err != nil {
		return "", err
	}
	contents := genai.Text(req.UserPrompt)

	var responseContent string
	operation := func() error {
		startTime := time.Now()
		resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, genConfig)
		duration := time.Since(startTime)
		if err != nil {
			return c.classifyError(ctx, err)
		}

		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return backoff.Permanent(fmt.Errorf("gemini API blocked the prompt (Reason: %s)", resp.PromptFeedback.BlockReason))
		}

		text := resp.Text()
		if text == "" && len(resp.Candidates) > 0 {
			switch reason := resp.Candidates[0].FinishReason; reason {
			case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent:
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", reason))
			}
		}

		fields := []zap.Field{
			zap.String("model", c.config.Model),
			zap.String("tier", string(req.Tier)),
			zap.Duration("duration", duration),
		}
		if usage := resp.UsageMetadata; usage != nil {
			fields = append(fields,
				zap.Int32("prompt_tokens", usage.PromptTokenCount),
				zap.Int32("completion_tokens", usage.CandidatesTokenCount),
				zap.Int32("total_tokens", usage.TotalTokenCount),
			)
		}
		c.logger.Info("LLM generation complete (Gemini)", fields...)

		responseContent = text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return "", err
	}
	return responseContent, nil
}

// classifyError decides whether a failed call is worth retrying.
func (c *GeminiClient) classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		c.logger.Error("Gemini API returned error status",
			zap.Int("status", apiErr.Code),
			zap.String("response", apiErr.Message),
		)
		wrapped := fmt.Errorf("gemini API error: status %d: %s", apiErr.Code, apiErr.Message)
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			return wrapped
		default:
			return backoff.Permanent(wrapped)
		}
	}

	c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
	return fmt.Errorf("gemini request failed: %w", err)
}

func (c *GeminiClient) buildConfig(req schemas.GenerationRequest) (*genai.GenerateContentConfig, error) {
	temperature := c.config.Temperature
	if req.Options.Temperature > 0 {
		temperature = float32(req.Options.Temperature)
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(temperature),
		SafetySettings: c.safetySettings(),
	}
	if c.config.TopP > 0 {
		genConfig.TopP = genai.Ptr(c.config.TopP)
	}
	if c.config.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(c.config.MaxTokens)
	}
	if req.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	if req.Options.ForceJSONFormat {
		genConfig.ResponseMIMEType = "application/json"
		if req.Options.ResponseSchema != "" {
			schema, ok := LookupSchema(req.Options.ResponseSchema)
			if !ok {
				return nil, fmt.Errorf("unknown response schema %q", req.Options.ResponseSchema)
			}
			genConfig.ResponseSchema = schema
		}
	}
	return genConfig, nil
}

func (c *GeminiClient) safetySettings() []*genai.SafetySetting {
	if len(c.config.SafetyFilters) == 0 {
		return nil
	}
	settings := make([]*genai.SafetySetting, 0, len(c.config.SafetyFilters))
	for category, threshold := range c.config.SafetyFilters {
		settings = append(settings, &genai.SafetySetting{
			Category:  genai.HarmCategory(category),
			Threshold: genai.HarmBlockThreshold(threshold),
		})
	}
	return settings
}

// Close releases idle transport connections.
func (c *GeminiClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

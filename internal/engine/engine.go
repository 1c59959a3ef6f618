// Package engine turns a scan request into a normalized report with a single
// structured generation call.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/results"
)

// Engine issues the analysis call and normalizes its output.
type Engine struct {
	llm    schemas.LLMClient
	logger *zap.Logger
}

// New creates an Engine backed by the given LLM client.
func New(llm schemas.LLMClient, logger *zap.Logger) *Engine {
	return &Engine{
		llm:    llm,
		logger: logger.Named("engine"),
	}
}

// Analyze runs one assessment. Generation, empty-output and parse errors are
// returned unchanged so the caller can surface their message.
func (e *Engine) Analyze(ctx context.Context, target string, kind schemas.ScanKind, activeModules []string) (*schemas.ScanResult, error) {
	req := schemas.GenerationRequest{
		SystemPrompt: SystemPrompt(),
		UserPrompt:   TaskPrompt(target, kind, activeModules),
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			ForceJSONFormat: true,
			ResponseSchema:  schemas.ResponseSchemaScanResult,
		},
	}

	start := time.Now()
	text, err := e.llm.Generate(ctx, req)
	if err != nil {
		e.logger.Error("Scan execution failed", zap.String("kind", string(kind)), zap.Error(err))
		return nil, err
	}

	raw, err := results.Decode(text)
	if err != nil {
		e.logger.Error("Scan execution failed", zap.String("kind", string(kind)), zap.Error(err), zap.Int("response_len", len(text)))
		return nil, err
	}

	result := results.Normalize(raw, target, kind)
	e.logger.Info("Analysis complete",
		zap.String("target", result.Target),
		zap.String("kind", string(kind)),
		zap.Int("risk_score", result.RiskScore),
		zap.Int("vulnerabilities", len(result.Vulnerabilities)),
		zap.Duration("duration", time.Since(start)),
	)
	return &result, nil
}

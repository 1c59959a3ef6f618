// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/chat"
	"github.com/xkilldash9x/websec-cli/internal/config"
	"github.com/xkilldash9x/websec-cli/internal/engine"
	"github.com/xkilldash9x/websec-cli/internal/events"
	"github.com/xkilldash9x/websec-cli/internal/history"
	"github.com/xkilldash9x/websec-cli/internal/orchestrator"
)

// eventBufferSize is the per-subscriber buffer of the scan event bus.
const eventBufferSize = 256

// ComponentFactory creates the set of components a command runs against.
// Commands take the interface so tests can substitute the wiring.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

// FactoryOption configures the production factory.
type FactoryOption func(*concreteFactory)

// WithLLMClient makes the factory use client instead of building one from
// the configuration.
func WithLLMClient(client schemas.LLMClient) FactoryOption {
	return func(f *concreteFactory) { f.llm = client }
}

// WithOrchestratorOptions forwards options to the orchestrator.
func WithOrchestratorOptions(opts ...orchestrator.Option) FactoryOption {
	return func(f *concreteFactory) { f.orchOpts = append(f.orchOpts, opts...) }
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct {
	llm      schemas.LLMClient
	orchOpts []orchestrator.Option
}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory(opts ...FactoryOption) ComponentFactory {
	f := &concreteFactory{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create wires LLM client, history, engine, event bus, orchestrator and chat
// session. Anything created before a failure is released before returning.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (_ *Components, err error) {
	if cfg == nil || logger == nil {
		return nil, fmt.Errorf("component factory requires a configuration and a logger")
	}

	components := &Components{logger: logger}
	defer func() {
		if err != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(err))
			components.Shutdown()
		}
	}()

	// 1. LLM client
	if f.llm != nil {
		components.LLM = f.llm
	} else {
		components.LLM, err = InitializeLLMClient(ctx, cfg.LLM(), logger)
		if err != nil {
			return nil, err
		}
	}

	// 2. History
	histCfg := cfg.History()
	persist, pool, err := InitializeHistoryPersistence(ctx, histCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history backend: %w", err)
	}
	components.DBPool = pool
	components.History = history.NewStore(persist, logger,
		history.WithKey(histCfg.Key),
		history.WithMaxEntries(histCfg.MaxEntries),
	)

	// 3. Analysis engine and scan lifecycle
	components.Engine = engine.New(components.LLM, logger)
	components.Bus = events.NewBus(logger, eventBufferSize)
	components.Orchestrator, err = orchestrator.New(cfg.Scan(), components.Engine, components.History, components.Bus, logger, f.orchOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	// 4. Assistant
	components.Chat = chat.NewSession(components.LLM, logger)

	return components, nil
}

// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/config"
	"github.com/xkilldash9x/websec-cli/internal/service"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) LLM() config.LLMConfig {
	args := m.Called()
	return args.Get(0).(config.LLMConfig)
}

func (m *MockConfig) History() config.HistoryConfig {
	args := m.Called()
	return args.Get(0).(config.HistoryConfig)
}

func (m *MockConfig) Scan() config.ScanConfig {
	args := m.Called()
	return args.Get(0).(config.ScanConfig)
}

func (m *MockConfig) Server() config.ServerConfig {
	args := m.Called()
	return args.Get(0).(config.ServerConfig)
}

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

// Generate provides a mock function for LLM calls.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Analyzer Mock --

// MockAnalyzer mocks the analysis step consumed by the scan orchestrator.
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, target string, kind schemas.ScanKind, activeModules []string) (*schemas.ScanResult, error) {
	args := m.Called(ctx, target, kind, activeModules)
	if res := args.Get(0); res != nil {
		return res.(*schemas.ScanResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// -- Component Factory Mock --

// MockComponentFactory mocks service.ComponentFactory.
type MockComponentFactory struct {
	mock.Mock
}

func (m *MockComponentFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*service.Components, error) {
	args := m.Called(ctx, cfg, logger)
	if c := args.Get(0); c != nil {
		return c.(*service.Components), args.Error(1)
	}
	return nil, args.Error(1)
}

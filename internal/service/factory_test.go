package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/config"
	"github.com/xkilldash9x/websec-cli/internal/llmclient"
	"github.com/xkilldash9x/websec-cli/internal/mocks"
	"github.com/xkilldash9x/websec-cli/internal/orchestrator"
	"github.com/xkilldash9x/websec-cli/internal/service"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func memoryConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.HistoryCfg.Backend = config.BackendMemory
	cfg.ScanCfg.NarrationPace = 0
	return cfg
}

func TestCreate_WiresComponents(t *testing.T) {
	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).
		Return(`{"summary": "ok", "riskScore": 42, "scanType": "url"}`, nil).Once()
	llm.On("Close").Return(nil).Once()

	factory := service.NewComponentFactory(service.WithLLMClient(llm))
	components, err := factory.Create(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)

	require.NotNil(t, components.History)
	require.NotNil(t, components.Engine)
	require.NotNil(t, components.Bus)
	require.NotNil(t, components.Orchestrator)
	require.NotNil(t, components.Chat)
	assert.Nil(t, components.DBPool)

	result, err := components.Orchestrator.Scan(context.Background(), schemas.ScanRequest{
		Target:   "https://example.com",
		ScanType: schemas.ScanKindURL,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result.RiskScore)

	saved := components.History.List(context.Background())
	require.Len(t, saved, 1)
	assert.Equal(t, result.Timestamp, saved[0].Timestamp)
	assert.Equal(t, orchestrator.StateSucceeded, components.Orchestrator.Snapshot().State)

	components.Shutdown()
	llm.AssertExpectations(t)
}

func TestCreate_MissingAPIKeyFallsBack(t *testing.T) {
	cfg := memoryConfig()
	cfg.LLMCfg.APIKey = ""

	components, err := service.NewComponentFactory().Create(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer components.Shutdown()

	_, err = components.LLM.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
	assert.ErrorIs(t, err, llmclient.ErrMissingAPIKey)

	// The assistant answers with its apology rather than failing.
	reply, err := components.Chat.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Contains(t, reply.Content, "mainframe")
}

func TestCreate_Errors(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := service.NewComponentFactory().Create(context.Background(), nil, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("unsupported history backend", func(t *testing.T) {
		llm := new(mocks.MockLLMClient)
		llm.On("Close").Return(nil).Once()

		cfg := memoryConfig()
		cfg.HistoryCfg.Backend = "redis"

		_, err := service.NewComponentFactory(service.WithLLMClient(llm)).Create(context.Background(), cfg, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported history backend")
		// Partially created components are released.
		llm.AssertExpectations(t)
	})
}

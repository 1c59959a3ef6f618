package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/config"
)

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	t.Run("builds a router sharing one client for identical tiers", func(t *testing.T) {
		cfg := config.NewDefaultConfig().LLM()
		cfg.APIKey = "key"

		client, err := NewClient(ctx, cfg, setupTestLogger(t))
		require.NoError(t, err)

		router, ok := client.(*LLMRouter)
		require.True(t, ok, "factory should return an LLMRouter")
		assert.Same(t, router.clients[schemas.TierFast], router.clients[schemas.TierPowerful])
		assert.Equal(t, "gemini-2.5-flash", router.clients[schemas.TierFast].(*GeminiClient).config.Model)
	})

	t.Run("distinct tiers get distinct clients", func(t *testing.T) {
		cfg := config.NewDefaultConfig().LLM()
		cfg.APIKey = "key"
		cfg.DefaultPowerfulModel = "gemini-2.5-pro"

		client, err := NewClient(ctx, cfg, setupTestLogger(t))
		require.NoError(t, err)

		router := client.(*LLMRouter)
		assert.Equal(t, "gemini-2.5-pro", router.clients[schemas.TierPowerful].(*GeminiClient).config.Model)
		assert.Equal(t, "gemini-2.5-flash", router.clients[schemas.TierFast].(*GeminiClient).config.Model)
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := config.NewDefaultConfig().LLM()
		cfg.APIKey = ""

		client, err := NewClient(ctx, cfg, setupTestLogger(t))
		assert.Nil(t, client)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
		assert.Contains(t, err.Error(), "API Key is missing")
	})

	t.Run("unsupported provider", func(t *testing.T) {
		cfg := config.NewDefaultConfig().LLM()
		cfg.Provider = "openai"

		_, err := NewClient(ctx, cfg, setupTestLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported LLM provider")
	})
}

func TestUnavailable(t *testing.T) {
	client := Unavailable(ErrMissingAPIKey)

	_, err := client.Generate(context.Background(), schemas.GenerationRequest{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.NoError(t, client.Close())
}

func TestLookupSchema(t *testing.T) {
	schema, ok := LookupSchema(schemas.ResponseSchemaScanResult)
	require.True(t, ok)
	assert.Contains(t, schema.Required, "vulnerabilities")
	assert.Equal(t, []string{"Critical", "High", "Medium", "Low", "Info"},
		schema.Properties["vulnerabilities"].Items.Properties["severity"].Enum)

	again, _ := LookupSchema(schemas.ResponseSchemaScanResult)
	assert.NotSame(t, schema, again, "each lookup returns a fresh schema")

	_, ok = LookupSchema("nope")
	assert.False(t, ok)
}

// File: internal/service/initializers.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/config"
	"github.com/xkilldash9x/websec-cli/internal/history"
	"github.com/xkilldash9x/websec-cli/internal/llmclient"
)

// InitializeLLMClient creates the tiered LLM client. A missing API key is not
// fatal: history, intel and report commands never call the model, so they get
// a client whose every call fails with llmclient.ErrMissingAPIKey.
func InitializeLLMClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	client, err := llmclient.NewClient(ctx, cfg, logger)
	if errors.Is(err, llmclient.ErrMissingAPIKey) {
		logger.Warn("No LLM API key configured; scans and chat will fail until one is set (WEBSEC_LLM_API_KEY).")
		return llmclient.Unavailable(err), nil
	}
	if err != nil {
		logger.Error("Failed to initialize LLM client.", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return client, nil
}

// InitializeHistoryPersistence opens the configured history backend. The
// returned pool is non-nil only for the postgres backend and is owned by the
// caller.
func InitializeHistoryPersistence(ctx context.Context, cfg config.HistoryConfig, logger *zap.Logger) (history.Persistence, *pgxpool.Pool, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("History backend is in-memory; saved reports will be lost on exit.")
		return history.NewMemoryPersistence(), nil, nil

	case config.BackendFile:
		dir, err := cfg.ResolvedDir()
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("Using file history backend.", zap.String("dir", dir))
		return history.NewFilePersistence(dir), nil, nil

	case config.BackendPostgres:
		pool, err := newPool(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		persist, err := history.NewPostgresPersistence(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := persist.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("Using PostgreSQL history backend.")
		return persist, pool, nil
	}
	return nil, nil, fmt.Errorf("unsupported history backend: %s", cfg.Backend)
}

func newPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse PGX pool config: %w", err)
	}
	// The history is one small row; a handful of connections is plenty.
	poolConfig.MaxConns = 4
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create PGX connection pool: %w", err)
	}
	return pool, nil
}

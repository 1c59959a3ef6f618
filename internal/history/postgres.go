package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	sqlCreateKV = `
        CREATE TABLE IF NOT EXISTS websec_kv (
            key        TEXT PRIMARY KEY,
            value      JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
    `
	sqlSelectKV = `SELECT value FROM websec_kv WHERE key = $1`
	sqlUpsertKV = `
        INSERT INTO websec_kv (key, value, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET
            value = EXCLUDED.value,
            updated_at = EXCLUDED.updated_at;
    `
	sqlDeleteKV = `DELETE FROM websec_kv WHERE key = $1`
)

// PostgresPersistence stores blobs in the websec_kv table so several hosts
// can share one history.
type PostgresPersistence struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgresPersistence verifies the connection before returning.
func NewPostgresPersistence(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresPersistence, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresPersistence{pool: pool, log: logger.Named("history.postgres")}, nil
}

// EnsureSchema creates the key/value table if it does not exist.
func (p *PostgresPersistence) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, sqlCreateKV); err != nil {
		return fmt.Errorf("failed to create websec_kv table: %w", err)
	}
	return nil
}

func (p *PostgresPersistence) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, sqlSelectKV, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, true, nil
}

func (p *PostgresPersistence) Set(ctx context.Context, key string, value []byte) error {
	// Sent as text so the server parses it as JSON rather than bytea.
	if _, err := p.pool.Exec(ctx, sqlUpsertKV, key, string(value)); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

func (p *PostgresPersistence) Delete(ctx context.Context, key string) error {
	tag, err := p.pool.Exec(ctx, sqlDeleteKV, key)
	if err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	p.log.Debug("Deleted history key", zap.String("key", key), zap.Int64("rows", tag.RowsAffected()))
	return nil
}

package history

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockPersistence(t *testing.T) (*PostgresPersistence, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	p, err := NewPostgresPersistence(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return p, mockPool
}

func TestNewPostgresPersistence_PingFailure(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)

	_, err = NewPostgresPersistence(context.Background(), mockPool, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresPersistence_EnsureSchema(t *testing.T) {
	p, mockPool := newMockPersistence(t)
	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateKV)).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, p.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresPersistence_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		p, mockPool := newMockPersistence(t)
		rows := pgxmock.NewRows([]string{"value"}).AddRow([]byte(`[{"target":"a"}]`))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectKV)).WithArgs(DefaultKey).WillReturnRows(rows)

		data, ok, err := p.Get(ctx, DefaultKey)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.JSONEq(t, `[{"target":"a"}]`, string(data))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		p, mockPool := newMockPersistence(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectKV)).WithArgs(DefaultKey).
			WillReturnRows(pgxmock.NewRows([]string{"value"}))

		data, ok, err := p.Get(ctx, DefaultKey)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, data)
	})

	t.Run("query error", func(t *testing.T) {
		p, mockPool := newMockPersistence(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectKV)).WithArgs(DefaultKey).
			WillReturnError(errors.New("connection reset"))

		_, _, err := p.Get(ctx, DefaultKey)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestPostgresPersistence_SetAndDelete(t *testing.T) {
	ctx := context.Background()
	p, mockPool := newMockPersistence(t)

	mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertKV)).
		WithArgs(DefaultKey, `[]`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec(flexibleSQLMatcher(sqlDeleteKV)).
		WithArgs(DefaultKey).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, p.Set(ctx, DefaultKey, []byte(`[]`)))
	require.NoError(t, p.Delete(ctx, DefaultKey))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresPersistence_BacksStore(t *testing.T) {
	ctx := context.Background()
	p, mockPool := newMockPersistence(t)

	mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectKV)).WithArgs(DefaultKey).
		WillReturnRows(pgxmock.NewRows([]string{"value"}))
	mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertKV)).
		WithArgs(DefaultKey, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(p, zap.NewNop())
	stamped := store.Record(ctx, sampleResult("https://example.com"))

	assert.NotEmpty(t, stamped.Timestamp)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

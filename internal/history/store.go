package history

import (
	"context"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultKey is the persistence key of the history blob.
	DefaultKey = "websec_history"
	// DefaultMaxEntries bounds the history length.
	DefaultMaxEntries = 10
	// TimestampLayout is ISO-8601 in UTC with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

// Store is the bounded report history. Persistence failures never reach the
// caller: they are logged and the operation degrades to a no-op or an empty
// list.
type Store struct {
	mu      sync.Mutex
	persist Persistence
	key     string
	max     int
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the persistence key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithMaxEntries overrides the history bound.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithClock replaces the time source used for save timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(persist Persistence, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		persist: persist,
		key:     DefaultKey,
		max:     DefaultMaxEntries,
		now:     time.Now,
		logger:  logger.Named("history"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record stamps the result with the current time, prepends it and truncates
// the history to the bound. The stamped entry is returned even when it could
// not be persisted.
func (s *Store) Record(ctx context.Context, result schemas.ScanResult) schemas.ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result.Timestamp = s.now().UTC().Format(TimestampLayout)

	prior, err := s.read(ctx)
	if err != nil {
		s.logger.Error("History unreadable, not recording scan", zap.String("key", s.key), zap.Error(err))
		return result
	}
	entries := append([]schemas.ScanResult{result}, prior...)
	if len(entries) > s.max {
		entries = entries[:s.max]
	}
	s.save(ctx, entries)

	s.logger.Debug("Recorded scan in history",
		zap.String("target", result.Target),
		zap.String("timestamp", result.Timestamp),
		zap.Int("entries", len(entries)),
	)
	return result
}

// List returns the history, most recent first.
func (s *Store) List(ctx context.Context) []schemas.ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Get returns the entry saved at timestamp.
func (s *Store) Get(ctx context.Context, timestamp string) (schemas.ScanResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.load(ctx) {
		if entry.Timestamp == timestamp {
			return entry, true
		}
	}
	return schemas.ScanResult{}, false
}

// Remove drops every entry with the given timestamp. It reports whether
// anything was removed; removing an unknown timestamp changes nothing.
func (s *Store) Remove(ctx context.Context, timestamp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load(ctx)
	kept := make([]schemas.ScanResult, 0, len(entries))
	for _, entry := range entries {
		if entry.Timestamp != timestamp {
			kept = append(kept, entry)
		}
	}
	if len(kept) == len(entries) {
		return false
	}
	s.save(ctx, kept)
	return true
}

// Clear deletes the persisted history.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist.Delete(ctx, s.key); err != nil {
		s.logger.Error("Failed to clear history", zap.String("key", s.key), zap.Error(err))
		return
	}
	s.logger.Info("History cleared", zap.String("key", s.key))
}

// load reads the blob. Missing or unreadable blobs yield an empty, non-nil list.
func (s *Store) load(ctx context.Context) []schemas.ScanResult {
	entries, err := s.read(ctx)
	if err != nil {
		s.logger.Error("Failed to load history", zap.String("key", s.key), zap.Error(err))
		return []schemas.ScanResult{}
	}
	return entries
}

// read returns the persisted entries. Only a failing backend is an error;
// an absent or unparsable blob reads as empty.
func (s *Store) read(ctx context.Context) ([]schemas.ScanResult, error) {
	data, ok, err := s.persist.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !ok || len(data) == 0 {
		return []schemas.ScanResult{}, nil
	}

	var entries []schemas.ScanResult
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("Discarding unparsable history blob", zap.String("key", s.key), zap.Error(err))
		return []schemas.ScanResult{}, nil
	}
	if entries == nil {
		return []schemas.ScanResult{}, nil
	}
	return entries, nil
}

func (s *Store) save(ctx context.Context, entries []schemas.ScanResult) {
	data, err := json.Marshal(entries)
	if err != nil {
		s.logger.Error("Failed to encode history", zap.Error(err))
		return
	}
	if err := s.persist.Set(ctx, s.key, data); err != nil {
		s.logger.Error("Failed to save history", zap.String("key", s.key), zap.Error(err))
	}
}

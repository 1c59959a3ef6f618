// Package history keeps the bounded, most-recent-first list of completed scan
// reports under a single persistence key.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Persistence is a minimal key/value port. Values are opaque JSON blobs.
type Persistence interface {
	// Get returns the stored value and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// ErrInvalidKey is returned for keys that cannot be mapped to storage.
var ErrInvalidKey = errors.New("invalid persistence key")

// -- Memory --

// MemoryPersistence keeps blobs in process memory.
type MemoryPersistence struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{data: make(map[string][]byte)}
}

func (m *MemoryPersistence) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryPersistence) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}

func (m *MemoryPersistence) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// -- File --

const lockRetryDelay = 25 * time.Millisecond

// FilePersistence stores each key as <dir>/<key>.json. Writers in different
// processes are serialized through an advisory lock file next to the blob,
// and writes go through a temp file plus rename so readers never observe a
// partial blob.
type FilePersistence struct {
	dir string
}

func NewFilePersistence(dir string) *FilePersistence {
	return &FilePersistence{dir: dir}
}

func (f *FilePersistence) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *FilePersistence) withLock(ctx context.Context, path string, shared bool, fn func() error) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}
	lock := flock.New(path + ".lock")
	var (
		ok  bool
		err error
	)
	if shared {
		ok, err = lock.TryRLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = lock.TryLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", lock.Path(), err)
	}
	if !ok {
		return fmt.Errorf("failed to acquire lock on %s", lock.Path())
	}
	defer lock.Unlock()
	return fn()
}

func (f *FilePersistence) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, false, err
	}
	var (
		data  []byte
		found bool
	)
	err = f.withLock(ctx, path, true, func() error {
		b, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		data, found = b, true
		return nil
	})
	return data, found, err
}

func (f *FilePersistence) Set(ctx context.Context, key string, value []byte) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	return f.withLock(ctx, path, false, func() error {
		tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
		if err != nil {
			return fmt.Errorf("failed to create temp file: %w", err)
		}
		tmpName := tmp.Name()
		defer os.Remove(tmpName) // no-op after a successful rename

		if _, err := tmp.Write(value); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write %s: %w", tmpName, err)
		}
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to sync %s: %w", tmpName, err)
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmpName, path)
	})
}

func (f *FilePersistence) Delete(ctx context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	return f.withLock(ctx, path, false, func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	})
}

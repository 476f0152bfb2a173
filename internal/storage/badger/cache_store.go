package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/semaphore"

	"github.com/scavengarr/scavengarr/internal/interfaces"
)

// CacheStore implements the CacheStore port over native Badger entries so
// expiry rides on the engine's own TTL support. A weighted semaphore gates
// concurrent operations to keep request bursts away from Badger's internal
// locks.
type CacheStore struct {
	db     *DB
	gate   *semaphore.Weighted
	logger arbor.ILogger
}

// NewCacheStore creates a cache store over an open connection. gate bounds
// in-flight store operations; values <= 0 fall back to 32.
func NewCacheStore(db *DB, gate int, logger arbor.ILogger) interfaces.CacheStore {
	if gate <= 0 {
		gate = 32
	}
	return &CacheStore{
		db:     db,
		gate:   semaphore.NewWeighted(int64(gate)),
		logger: logger,
	}
}

func normalizeKey(key string) string {
	return strings.TrimSpace(key)
}

// Get retrieves a value by key. Expired entries surface as not-found.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.gate.Release(1)

	var value []byte
	err := s.db.Store().Badger().View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(normalizeKey(key)))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return value, nil
}

// Set stores a value under key with the given TTL. ttl <= 0 stores without
// expiry.
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.gate.Release(1)

	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		entry := badgerdb.NewEntry([]byte(normalizeKey(key)), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *CacheStore) Delete(ctx context.Context, key string) error {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.gate.Release(1)

	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(normalizeKey(key)))
	})
	if err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// Exists reports whether a live (non-expired) entry is stored under key.
func (s *CacheStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Clear drops every entry in the store.
func (s *CacheStore) Clear(ctx context.Context) error {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.gate.Release(1)

	if err := s.db.Store().Badger().DropAll(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	s.logger.Info().Msg("Cache store cleared")
	return nil
}

// Close is a no-op; the shared connection is owned by the app and closed
// during shutdown.
func (s *CacheStore) Close() error {
	return nil
}

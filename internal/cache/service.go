// Package cache layers the three Scavengarr namespaces (search, crawljob,
// stream) over one CacheStore port and handles value serialization with a
// stable binary encoding.
package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/interfaces"
)

// Namespace prefixes. One pluggable backend serves all three.
const (
	NamespaceSearch   = "search:"
	NamespaceCrawlJob = "crawljob:"
	NamespaceStream   = "stream:"
)

// Service wraps a CacheStore with namespace keys and gob serialization.
type Service struct {
	store  interfaces.CacheStore
	logger arbor.ILogger
}

// NewService creates a cache service over the given store.
func NewService(store interfaces.CacheStore, logger arbor.ILogger) *Service {
	return &Service{store: store, logger: logger}
}

// GetInto loads and decodes the value at namespace+key into out. Returns
// interfaces.ErrKeyNotFound on miss or expiry.
func (s *Service) GetInto(ctx context.Context, namespace, key string, out any) error {
	data, err := s.store.Get(ctx, namespace+key)
	if err != nil {
		return err
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode cached value: %w", err)
	}
	return nil
}

// Put encodes and stores value under namespace+key with the given TTL.
func (s *Service) Put(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return s.store.Set(ctx, namespace+key, buf.Bytes(), ttl)
}

// Delete removes the entry at namespace+key.
func (s *Service) Delete(ctx context.Context, namespace, key string) error {
	return s.store.Delete(ctx, namespace+key)
}

// Exists reports whether a live entry is stored at namespace+key.
func (s *Service) Exists(ctx context.Context, namespace, key string) (bool, error) {
	return s.store.Exists(ctx, namespace+key)
}

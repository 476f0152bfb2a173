package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/interfaces"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *memStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}

func (m *memStore) Close() error { return nil }

type sample struct {
	Title string
	Links []string
	Size  int64
}

func TestService_PutAndGetInto(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, arbor.NewLogger())
	ctx := context.Background()

	in := sample{Title: "Inception", Links: []string{"a", "b"}, Size: 4831838208}
	require.NoError(t, svc.Put(ctx, NamespaceSearch, "fp", in, time.Hour))

	var out sample
	require.NoError(t, svc.GetInto(ctx, NamespaceSearch, "fp", &out))
	assert.Equal(t, in, out)

	// The TTL passes through to the store.
	assert.Equal(t, time.Hour, store.ttls[NamespaceSearch+"fp"])
}

func TestService_NamespacesAreIsolated(t *testing.T) {
	svc := NewService(newMemStore(), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, svc.Put(ctx, NamespaceSearch, "key", sample{Title: "search"}, 0))
	require.NoError(t, svc.Put(ctx, NamespaceStream, "key", sample{Title: "stream"}, 0))

	var out sample
	require.NoError(t, svc.GetInto(ctx, NamespaceSearch, "key", &out))
	assert.Equal(t, "search", out.Title)
	require.NoError(t, svc.GetInto(ctx, NamespaceStream, "key", &out))
	assert.Equal(t, "stream", out.Title)

	ok, err := svc.Exists(ctx, NamespaceCrawlJob, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_GetIntoMiss(t *testing.T) {
	svc := NewService(newMemStore(), arbor.NewLogger())

	var out sample
	err := svc.GetInto(context.Background(), NamespaceSearch, "missing", &out)
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestService_GetIntoCorruptValue(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, NamespaceSearch+"bad", []byte("not gob"), 0))

	var out sample
	err := svc.GetInto(ctx, NamespaceSearch, "bad", &out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestService_Delete(t *testing.T) {
	svc := NewService(newMemStore(), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, svc.Put(ctx, NamespaceStream, "k", sample{Title: "x"}, 0))
	require.NoError(t, svc.Delete(ctx, NamespaceStream, "k"))

	var out sample
	assert.ErrorIs(t, svc.GetInto(ctx, NamespaceStream, "k", &out), interfaces.ErrKeyNotFound)
}

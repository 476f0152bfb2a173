package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/cache"
	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/metrics"
	"github.com/scavengarr/scavengarr/internal/models"
	"github.com/scavengarr/scavengarr/internal/plugins"
	"github.com/scavengarr/scavengarr/internal/scrape"
	"github.com/scavengarr/scavengarr/internal/search"
	"github.com/scavengarr/scavengarr/internal/torznab"
)

// memStoreHandlers is an in-memory CacheStore; TTLs are ignored.
type memStoreHandlers struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStoreHandlers() *memStoreHandlers {
	return &memStoreHandlers{data: make(map[string][]byte)}
}

func (m *memStoreHandlers) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStoreHandlers) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStoreHandlers) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStoreHandlers) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *memStoreHandlers) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}

func (m *memStoreHandlers) Close() error { return nil }

type cannedPlugin struct {
	desc    *models.PluginDescriptor
	results []models.SearchResult
}

func (p *cannedPlugin) Descriptor() *models.PluginDescriptor { return p.desc }

func (p *cannedPlugin) Search(ctx context.Context, q models.Query) ([]models.SearchResult, error) {
	out := make([]models.SearchResult, len(p.results))
	copy(out, p.results)
	return out, nil
}

func (p *cannedPlugin) CheckReachable(ctx context.Context) error { return nil }
func (p *cannedPlugin) Cleanup(ctx context.Context) error       { return nil }

type liveValidator struct{}

func (liveValidator) Validate(ctx context.Context, url string) bool { return true }

func (liveValidator) ValidateBatch(ctx context.Context, urls []string) map[string]bool {
	out := make(map[string]bool, len(urls))
	for _, u := range urls {
		out[u] = true
	}
	return out
}

func init() {
	plugins.RegisterFactory("handlersite", func(deps plugins.Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		return &cannedPlugin{
			desc: desc,
			results: []models.SearchResult{
				{
					Title:        "Inception 2010",
					ReleaseName:  "Inception.2010.1080p.BluRay.x264-GROUP",
					DownloadLink: "https://hoster.example/file1",
					Size:         "4.5 GB",
					Category:     "2000",
				},
			},
		}, nil
	})
}

func newTorznabTestHandler(t *testing.T, production bool) *TorznabHandler {
	t.Helper()
	logger := arbor.NewLogger()

	dir := t.TempDir()
	descriptor := `
name = "handlersite"
provides = "stream"
mode = "http"
domains = ["handlersite.example"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "handlersite.toml"), []byte(descriptor), 0644))

	registry := plugins.NewRegistry(plugins.Deps{}, logger)
	require.NoError(t, registry.Discover(dir))

	engine := scrape.NewEngine(
		registry,
		liveValidator{},
		metrics.NewCollector(),
		metrics.NewBreakerTable(metrics.DefaultBreakerConfig()),
		time.Minute,
		logger,
	)
	searchService := search.NewService(
		engine,
		cache.NewService(newMemStoreHandlers(), logger),
		newMemJobs(),
		time.Minute, time.Hour,
		logger,
	)
	presenter := &torznab.Presenter{ServerTitle: "Scavengarr", BaseURL: "http://localhost:8080"}

	return NewTorznabHandler(searchService, registry, presenter, "1.0.0", 1000, production, logger)
}

func TestPluginHandler_Caps(t *testing.T) {
	h := newTorznabTestHandler(t, false)

	req := httptest.NewRequest("GET", "/api/v1/torznab/handlersite?t=caps", nil)
	rec := httptest.NewRecorder()
	h.PluginHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
	assert.Contains(t, rec.Body.String(), "<caps>")
	assert.Contains(t, rec.Body.String(), `id="2000"`)
}

func TestPluginHandler_CapsWithoutConstruction(t *testing.T) {
	// A headless plugin without a browser pool fails construction, but caps
	// needs only the descriptor.
	plugins.RegisterFactory("capsonlysite", func(deps plugins.Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		return nil, errors.New("browser pool unavailable")
	})

	logger := arbor.NewLogger()
	dir := t.TempDir()
	descriptor := `
name = "capsonlysite"
provides = "stream"
mode = "headless"
domains = ["capsonlysite.example"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "capsonlysite.toml"), []byte(descriptor), 0644))

	registry := plugins.NewRegistry(plugins.Deps{}, logger)
	require.NoError(t, registry.Discover(dir))

	presenter := &torznab.Presenter{ServerTitle: "Scavengarr", BaseURL: "http://localhost:8080"}
	h := NewTorznabHandler(nil, registry, presenter, "1.0.0", 1000, false, logger)

	rec := httptest.NewRecorder()
	h.PluginHandler(rec, httptest.NewRequest("GET", "/api/v1/torznab/capsonlysite?t=caps", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<caps>")
}

func TestPluginHandler_Search(t *testing.T) {
	h := newTorznabTestHandler(t, false)

	req := httptest.NewRequest("GET", "/api/v1/torznab/handlersite?t=search&q=inception", nil)
	rec := httptest.NewRecorder()
	h.PluginHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Inception.2010.1080p.BluRay.x264-GROUP")
	assert.Contains(t, body, "/api/v1/download/")
	assert.Empty(t, rec.Header().Get("X-Cache"))

	// Repeating the query is served from cache.
	rec = httptest.NewRecorder()
	h.PluginHandler(rec, httptest.NewRequest("GET", "/api/v1/torznab/handlersite?t=search&q=inception", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestPluginHandler_UnknownPlugin_Development(t *testing.T) {
	h := newTorznabTestHandler(t, false)

	req := httptest.NewRequest("GET", "/api/v1/torznab/nosuchsite?t=search&q=x", nil)
	rec := httptest.NewRecorder()
	h.PluginHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPluginHandler_UnknownPlugin_Production(t *testing.T) {
	h := newTorznabTestHandler(t, true)

	req := httptest.NewRequest("GET", "/api/v1/torznab/nosuchsite?t=search&q=x", nil)
	rec := httptest.NewRecorder()
	h.PluginHandler(rec, req)

	// Production collapses failures to an empty feed so the indexer stays
	// enabled upstream.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<rss")
	assert.NotContains(t, rec.Body.String(), "<item>")
}

func TestPluginHandler_MissingT(t *testing.T) {
	h := newTorznabTestHandler(t, false)

	req := httptest.NewRequest("GET", "/api/v1/torznab/handlersite", nil)
	rec := httptest.NewRecorder()
	h.PluginHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPluginHandler_InvalidQuery(t *testing.T) {
	h := newTorznabTestHandler(t, false)

	req := httptest.NewRequest("GET", "/api/v1/torznab/handlersite?t=search&q=x&offset=-1", nil)
	rec := httptest.NewRecorder()
	h.PluginHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPluginHandler_ExtendedProbe(t *testing.T) {
	h := newTorznabTestHandler(t, false)

	req := httptest.NewRequest("GET", "/api/v1/torznab/handlersite?t=search&extended=1", nil)
	rec := httptest.NewRecorder()
	h.PluginHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "handlersite test")
}

func TestPluginHandler_Health(t *testing.T) {
	h := newTorznabTestHandler(t, false)

	req := httptest.NewRequest("GET", "/api/v1/torznab/handlersite/health", nil)
	rec := httptest.NewRecorder()
	h.PluginHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reachable":true`)
}

func TestIndexersHandler(t *testing.T) {
	h := newTorznabTestHandler(t, false)

	req := httptest.NewRequest("GET", "/api/v1/torznab/indexers", nil)
	rec := httptest.NewRecorder()
	h.IndexersHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "handlersite")
}

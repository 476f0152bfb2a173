// Package interfaces declares the ports shared across Scavengarr's
// components. Concrete implementations live next to the subsystem that
// owns them; consumers depend on these contracts only.
package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/scavengarr/scavengarr/internal/models"
)

var (
	// ErrKeyNotFound is returned by cache stores for missing keys.
	ErrKeyNotFound = errors.New("key not found")

	// ErrPluginNotFound is returned by the registry for unknown names.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrPluginDuplicate is returned when two descriptors declare one name.
	ErrPluginDuplicate = errors.New("duplicate plugin name")

	// ErrPluginLoad is returned on descriptor parse or contract violations.
	ErrPluginLoad = errors.New("plugin load error")

	// ErrNoResolver is returned when no resolver matches and the
	// content-type probe did not classify the URL as direct.
	ErrNoResolver = errors.New("no resolver matched")

	// ErrHosterOffline is returned when a hoster page carries an offline
	// marker for the requested file.
	ErrHosterOffline = errors.New("hoster reports file offline")

	// ErrCircuitOpen is returned when a plugin's breaker rejects work.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// Plugin is the uniform contract over site adapters, HTTP and headless
// alike. Search must honor ctx cancellation at every suspension point.
type Plugin interface {
	Descriptor() *models.PluginDescriptor
	Search(ctx context.Context, q models.Query) ([]models.SearchResult, error)
	CheckReachable(ctx context.Context) error
	Cleanup(ctx context.Context) error
}

// CacheStore is the async KV port with TTL shared by the search,
// crawljob, and stream namespaces.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
	Close() error
}

// LinkValidator filters URLs down to the reachable subset.
type LinkValidator interface {
	Validate(ctx context.Context, url string) bool
	ValidateBatch(ctx context.Context, urls []string) map[string]bool
}

// Resolver turns one hoster page/embed URL into a direct stream URL.
type Resolver interface {
	Name() string
	SupportedDomains() []string
	Resolve(ctx context.Context, url string) (*models.ResolvedStream, error)
}

// CrawlJobRepository stores packaging jobs until expiry.
type CrawlJobRepository interface {
	Save(ctx context.Context, job *models.CrawlJob) error
	Get(ctx context.Context, jobID string) (*models.CrawlJob, error)
	Delete(ctx context.Context, jobID string) error
}

// TitleResolver looks up title metadata for a Stremio id. External
// collaborators implement it; the stream use case only consumes it.
type TitleResolver interface {
	Resolve(ctx context.Context, imdbID, mediaType string) (*models.ResolvedTitle, error)
}

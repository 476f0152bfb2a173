// Package plugins discovers site adapters from descriptor files and hands
// out lazily constructed instances. A descriptor file supplies the static
// metadata; the matching factory, registered by the adapter package at
// init time, supplies the behavior.
package plugins

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/browser"
	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
)

// Deps carries the shared collaborators every plugin construction needs.
type Deps struct {
	Client    *http.Client
	Pool      *browser.Pool
	UserAgent string
	Logger    arbor.ILogger

	// Fleet-wide defaults, overridable per descriptor.
	MaxResults   int
	Concurrency  int
	DelaySeconds float64
	MaxDepth     int
}

// Factory builds one plugin from its descriptor.
type Factory func(deps Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory binds a plugin name to its constructor. Adapter packages
// call this from init; a duplicate name panics because it is a programming
// error, not an operator one.
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	name = strings.ToLower(name)
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("plugin factory %q registered twice", name))
	}
	factories[name] = f
}

func lookupFactory(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[strings.ToLower(name)]
	return f, ok
}

// entry pairs a parsed descriptor with its instance. Construction is lazy
// and serialized so a burst of first requests builds the plugin once.
type entry struct {
	desc *models.PluginDescriptor

	mu       sync.Mutex
	instance interfaces.Plugin
	loadErr  error
	loaded   bool
}

// Registry owns the discovered plugin set.
type Registry struct {
	deps   Deps
	logger arbor.ILogger

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry; call Discover to populate it.
func NewRegistry(deps Deps, logger arbor.ILogger) *Registry {
	return &Registry{
		deps:    deps,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Discover scans dir for *.toml descriptors and registers each one. A
// descriptor that fails to parse or violates the contract is skipped with a
// warning; a duplicate name fails discovery outright.
func (r *Registry) Discover(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return fmt.Errorf("scanning plugin dir %s: %w", dir, err)
	}
	sort.Strings(paths)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, path := range paths {
		desc, err := loadDescriptor(path)
		if err != nil {
			r.logger.Warn().Err(err).Str("file", path).Msg("Skipping invalid plugin descriptor")
			continue
		}

		name := strings.ToLower(desc.Name)
		if _, exists := r.entries[name]; exists {
			return fmt.Errorf("%w: %q declared again in %s", interfaces.ErrPluginDuplicate, desc.Name, path)
		}
		if _, ok := lookupFactory(name); !ok {
			r.logger.Warn().Str("plugin", desc.Name).Str("file", path).
				Msg("Descriptor has no registered implementation, skipping")
			continue
		}

		r.entries[name] = &entry{desc: desc}
		r.logger.Info().
			Str("plugin", desc.Name).
			Str("mode", string(desc.Mode)).
			Str("provides", string(desc.Provides)).
			Int("domains", len(desc.Domains)).
			Msg("Plugin registered")
	}

	if len(r.entries) == 0 {
		r.logger.Warn().Str("dir", dir).Msg("No plugins discovered")
	}
	return nil
}

func loadDescriptor(path string) (*models.PluginDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrPluginLoad, err)
	}
	var desc models.PluginDescriptor
	if err := toml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrPluginLoad, path, err)
	}
	if err := validateDescriptor(&desc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrPluginLoad, path, err)
	}
	return &desc, nil
}

func validateDescriptor(desc *models.PluginDescriptor) error {
	switch {
	case desc.Name == "":
		return fmt.Errorf("descriptor missing name")
	case len(desc.Domains) == 0:
		return fmt.Errorf("descriptor %q lists no domains", desc.Name)
	case desc.Mode != models.ModeHTTP && desc.Mode != models.ModeHeadless:
		return fmt.Errorf("descriptor %q has unknown mode %q", desc.Name, desc.Mode)
	case desc.Provides != models.ProvidesStream && desc.Provides != models.ProvidesDownload:
		return fmt.Errorf("descriptor %q has unknown provides %q", desc.Name, desc.Provides)
	}
	return nil
}

// Names returns all registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns the descriptors of all registered plugins, sorted by
// name. The instances are not constructed.
func (r *Registry) Descriptors() []*models.PluginDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]*models.PluginDescriptor, 0, len(r.entries))
	for _, e := range r.entries {
		descs = append(descs, e.desc)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Descriptor returns the named plugin's descriptor without constructing
// the instance.
func (r *Registry) Descriptor(name string) (*models.PluginDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", interfaces.ErrPluginNotFound, name)
	}
	return e.desc, nil
}

// Get returns the named plugin, constructing it on first use. A failed
// construction is remembered and returned to every caller.
func (r *Registry) Get(name string) (interfaces.Plugin, error) {
	r.mu.RLock()
	e, ok := r.entries[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", interfaces.ErrPluginNotFound, name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return e.instance, e.loadErr
	}

	factory, _ := lookupFactory(e.desc.Name)
	instance, err := factory(r.deps, e.desc)
	e.loaded = true
	if err != nil {
		e.loadErr = fmt.Errorf("%w: %q: %v", interfaces.ErrPluginLoad, e.desc.Name, err)
		r.logger.Error().Err(err).Str("plugin", e.desc.Name).Msg("Plugin construction failed")
		return nil, e.loadErr
	}
	e.instance = instance
	return instance, nil
}

// RecheckDomains re-probes reachability on every constructed plugin.
// Invoked on a schedule so a site that failed over to a mirror can return
// to its primary domain once it recovers.
func (r *Registry) RecheckDomains(ctx context.Context) {
	r.mu.RLock()
	loaded := make([]interfaces.Plugin, 0, len(r.entries))
	for _, e := range r.entries {
		e.mu.Lock()
		if e.loaded && e.loadErr == nil {
			loaded = append(loaded, e.instance)
		}
		e.mu.Unlock()
	}
	r.mu.RUnlock()

	for _, p := range loaded {
		if err := p.CheckReachable(ctx); err != nil {
			r.logger.Warn().Err(err).
				Str("plugin", p.Descriptor().Name).
				Msg("Domain recheck failed")
		}
	}
}

// Cleanup releases every constructed plugin's resources.
func (r *Registry) Cleanup(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		e.mu.Lock()
		if e.loaded && e.loadErr == nil {
			if err := e.instance.Cleanup(ctx); err != nil {
				r.logger.Warn().Err(err).Str("plugin", e.desc.Name).Msg("Plugin cleanup failed")
			}
		}
		e.mu.Unlock()
	}
}

package plugins

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
)

type staticPlugin struct {
	desc     *models.PluginDescriptor
	cleanups int
}

func (p *staticPlugin) Descriptor() *models.PluginDescriptor { return p.desc }

func (p *staticPlugin) Search(ctx context.Context, q models.Query) ([]models.SearchResult, error) {
	return nil, nil
}

func (p *staticPlugin) CheckReachable(ctx context.Context) error { return nil }

func (p *staticPlugin) Cleanup(ctx context.Context) error {
	p.cleanups++
	return nil
}

func writeDescriptor(t *testing.T, dir, file, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0644))
}

const goodDescriptor = `
name = "testsite"
provides = "stream"
mode = "http"
domains = ["testsite.example"]
default_language = "de"

[categories]
"2000" = "movies"
`

func TestDiscover_RegistersDescriptor(t *testing.T) {
	RegisterFactory("testsite", func(deps Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		return &staticPlugin{desc: desc}, nil
	})

	dir := t.TempDir()
	writeDescriptor(t, dir, "testsite.toml", goodDescriptor)

	reg := NewRegistry(Deps{}, arbor.NewLogger())
	require.NoError(t, reg.Discover(dir))

	assert.Equal(t, []string{"testsite"}, reg.Names())

	descs := reg.Descriptors()
	require.Len(t, descs, 1)
	assert.Equal(t, "testsite", descs[0].Name)
	assert.Equal(t, models.ProvidesStream, descs[0].Provides)
	assert.Equal(t, "movies", descs[0].SiteTag("2000"))
	assert.Equal(t, "", descs[0].SiteTag("5000"))
}

func TestDiscover_SkipsInvalidDescriptor(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "broken.toml", `name = "broken"`) // no domains, no mode
	writeDescriptor(t, dir, "nottoml.toml", `{{{{`)

	reg := NewRegistry(Deps{}, arbor.NewLogger())
	require.NoError(t, reg.Discover(dir))
	assert.Empty(t, reg.Names())
}

func TestDiscover_SkipsDescriptorWithoutFactory(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "orphan.toml", `
name = "orphan-without-factory"
provides = "download"
mode = "http"
domains = ["orphan.example"]
`)

	reg := NewRegistry(Deps{}, arbor.NewLogger())
	require.NoError(t, reg.Discover(dir))
	assert.Empty(t, reg.Names())
}

func TestDiscover_DuplicateNameFails(t *testing.T) {
	RegisterFactory("dupsite", func(deps Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		return &staticPlugin{desc: desc}, nil
	})

	descriptor := `
name = "dupsite"
provides = "stream"
mode = "http"
domains = ["dupsite.example"]
`
	dir := t.TempDir()
	writeDescriptor(t, dir, "a.toml", descriptor)
	writeDescriptor(t, dir, "b.toml", descriptor)

	reg := NewRegistry(Deps{}, arbor.NewLogger())
	err := reg.Discover(dir)
	assert.ErrorIs(t, err, interfaces.ErrPluginDuplicate)
}

func TestGet_LazyConstructionIsMemoized(t *testing.T) {
	constructions := 0
	RegisterFactory("lazysite", func(deps Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		constructions++
		return &staticPlugin{desc: desc}, nil
	})

	dir := t.TempDir()
	writeDescriptor(t, dir, "lazysite.toml", `
name = "lazysite"
provides = "stream"
mode = "http"
domains = ["lazysite.example"]
`)

	reg := NewRegistry(Deps{}, arbor.NewLogger())
	require.NoError(t, reg.Discover(dir))
	assert.Zero(t, constructions, "discovery must not construct")

	first, err := reg.Get("lazysite")
	require.NoError(t, err)
	second, err := reg.Get("LazySite") // lookup is case-insensitive
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, constructions)
}

func TestGet_ConstructionErrorIsRemembered(t *testing.T) {
	constructions := 0
	RegisterFactory("failsite", func(deps Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		constructions++
		return nil, errors.New("browser pool unavailable")
	})

	dir := t.TempDir()
	writeDescriptor(t, dir, "failsite.toml", `
name = "failsite"
provides = "stream"
mode = "headless"
domains = ["failsite.example"]
`)

	reg := NewRegistry(Deps{}, arbor.NewLogger())
	require.NoError(t, reg.Discover(dir))

	_, err := reg.Get("failsite")
	assert.ErrorIs(t, err, interfaces.ErrPluginLoad)
	_, err = reg.Get("failsite")
	assert.ErrorIs(t, err, interfaces.ErrPluginLoad)
	assert.Equal(t, 1, constructions, "failed construction is not retried")
}

func TestDescriptor_DoesNotConstruct(t *testing.T) {
	RegisterFactory("descsite", func(deps Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		t.Fatal("descriptor lookup must not construct")
		return nil, nil
	})

	dir := t.TempDir()
	writeDescriptor(t, dir, "descsite.toml", `
name = "descsite"
provides = "stream"
mode = "headless"
domains = ["descsite.example"]
`)

	reg := NewRegistry(Deps{}, arbor.NewLogger())
	require.NoError(t, reg.Discover(dir))

	desc, err := reg.Descriptor("DescSite")
	require.NoError(t, err)
	assert.Equal(t, "descsite", desc.Name)

	_, err = reg.Descriptor("nosuchsite")
	assert.ErrorIs(t, err, interfaces.ErrPluginNotFound)
}

func TestGet_UnknownPlugin(t *testing.T) {
	reg := NewRegistry(Deps{}, arbor.NewLogger())
	require.NoError(t, reg.Discover(t.TempDir()))

	_, err := reg.Get("nosuchsite")
	assert.ErrorIs(t, err, interfaces.ErrPluginNotFound)
}

func TestCleanup_ReachesConstructedPluginsOnly(t *testing.T) {
	built := &staticPlugin{}
	RegisterFactory("cleanupsite", func(deps Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		built.desc = desc
		return built, nil
	})

	dir := t.TempDir()
	writeDescriptor(t, dir, "cleanupsite.toml", `
name = "cleanupsite"
provides = "stream"
mode = "http"
domains = ["cleanupsite.example"]
`)
	writeDescriptor(t, dir, "untouched.toml", `
name = "untouchedsite"
provides = "stream"
mode = "http"
domains = ["untouched.example"]
`)
	RegisterFactory("untouchedsite", func(deps Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		t.Fatal("never constructed")
		return nil, nil
	})

	reg := NewRegistry(Deps{}, arbor.NewLogger())
	require.NoError(t, reg.Discover(dir))

	_, err := reg.Get("cleanupsite")
	require.NoError(t, err)

	reg.Cleanup(context.Background())
	assert.Equal(t, 1, built.cleanups)
}

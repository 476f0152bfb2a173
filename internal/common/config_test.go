package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scavengarr.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFiles_Defaults(t *testing.T) {
	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "badger", cfg.Cache.Backend)
	assert.Equal(t, 900*time.Second, cfg.Cache.SearchTTL)
	assert.Equal(t, 5, cfg.Stream.PreResolveTopN)
}

func TestLoadFromFiles_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment = "production"

[server]
port = 9090
host = "127.0.0.1"

[stream]
language = "en"
`)

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "en", cfg.Stream.Language)
	// Untouched sections keep their defaults.
	assert.Equal(t, "./plugins", cfg.Plugins.Dir)
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	first := writeConfig(t, "[server]\nport = 9000\n")
	second := writeConfig(t, "[server]\nport = 9001\n")

	cfg, err := LoadFromFiles(first, second)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles("/no/such/config.toml")
	assert.Error(t, err)
}

func TestLoadFromFiles_InvalidEnvironment(t *testing.T) {
	path := writeConfig(t, `environment = "staging"`)

	_, err := LoadFromFiles(path)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestLoadFromFiles_InvalidPort(t *testing.T) {
	path := writeConfig(t, "[server]\nport = 70000\n")

	_, err := LoadFromFiles(path)
	assert.Error(t, err)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("SCAVENGARR_ENVIRONMENT", "production")
	t.Setenv("SCAVENGARR_PORT", "9999")
	t.Setenv("SCAVENGARR_PLUGIN_DIR", "/opt/plugins")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "/opt/plugins", cfg.Plugins.Dir)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyFlagOverrides(cfg, 7070, "localhost", "/etc/plugins")

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "/etc/plugins", cfg.Plugins.Dir)

	// Zero values leave the config untouched.
	ApplyFlagOverrides(cfg, 0, "", "")
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestIsProduction(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.False(t, cfg.IsProduction())

	cfg.Environment = "production"
	assert.True(t, cfg.IsProduction())
}

func TestDrainDeadline(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, 10*time.Second, cfg.DrainDeadline())

	cfg.Server.DrainDeadline = "30s"
	assert.Equal(t, 30*time.Second, cfg.DrainDeadline())

	cfg.Server.DrainDeadline = "garbage"
	assert.Equal(t, 10*time.Second, cfg.DrainDeadline())
}

package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment string          `toml:"environment" validate:"oneof=development test production"` // controls error surfacing on Torznab endpoints
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Plugins     PluginsConfig   `toml:"plugins"`
	HTTP        HTTPConfig      `toml:"http"`
	Browser     BrowserConfig   `toml:"browser"`
	Validator   ValidatorConfig `toml:"validator"`
	Cache       CacheConfig     `toml:"cache"`
	Stream      StreamConfig    `toml:"stream"`
}

type ServerConfig struct {
	Port          int    `toml:"port" validate:"gt=0,lte=65535"`
	Host          string `toml:"host"`
	DrainDeadline string `toml:"drain_deadline"` // e.g. "10s" - graceful shutdown budget
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"`
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// PluginsConfig controls plugin discovery and shared execution defaults.
type PluginsConfig struct {
	Dir           string        `toml:"dir"`            // directory scanned for plugin descriptor files
	MaxResults    int           `toml:"max_results"`    // pagination ceiling per plugin search
	Concurrency   int           `toml:"concurrency"`    // default detail-page fan-out per plugin
	DelaySeconds  float64       `toml:"delay_seconds"`  // default pacing between stage fetches
	MaxDepth      int           `toml:"max_depth"`      // stage graph depth ceiling
	DomainRecheck string        `toml:"domain_recheck"` // cron spec for re-probing failed domains
	SearchTimeout time.Duration `toml:"search_timeout"`
}

type HTTPConfig struct {
	Timeout          time.Duration `toml:"timeout"`
	UserAgent        string        `toml:"user_agent"`
	MaxRedirects     int           `toml:"max_redirects"`
	MaxIdleConns     int           `toml:"max_idle_conns"`
	RetryMaxAttempts int           `toml:"retry_max_attempts"`
	RetryBaseBackoff time.Duration `toml:"retry_base_backoff"`
}

type BrowserConfig struct {
	Enabled           bool          `toml:"enabled"`
	PoolSize          int           `toml:"pool_size"`
	NavigationTimeout time.Duration `toml:"navigation_timeout"`
	ChallengeTimeout  time.Duration `toml:"challenge_timeout"`
	Headless          bool          `toml:"headless"`
	NoSandbox         bool          `toml:"no_sandbox"`
}

type ValidatorConfig struct {
	Timeout     time.Duration `toml:"timeout"`
	Concurrency int           `toml:"concurrency"`
}

type CacheConfig struct {
	Backend     string        `toml:"backend" validate:"oneof=badger"` // embedded KV; remote backends plug in behind the same port
	Dir         string        `toml:"dir"`
	SearchTTL   time.Duration `toml:"search_ttl"`
	CrawlJobTTL time.Duration `toml:"crawljob_ttl"`
	StreamTTL   time.Duration `toml:"stream_ttl"`
	Gate        int           `toml:"gate"` // bounds concurrent store operations
}

type StreamConfig struct {
	PerPluginTimeout time.Duration `toml:"per_plugin_timeout"`
	TotalTimeout     time.Duration `toml:"total_timeout"`
	PreResolveTopN   int           `toml:"pre_resolve_top_n"`
	Language         string        `toml:"language"` // preferred audio language for ranking
}

// NewDefaultConfig creates a configuration with default values. Technical
// parameters are hardcoded here; only user-facing settings belong in the
// TOML file.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:          8080,
			Host:          "0.0.0.0",
			DrainDeadline: "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout"},
		},
		Plugins: PluginsConfig{
			Dir:           "./plugins",
			MaxResults:    1000,
			Concurrency:   3,
			DelaySeconds:  1.5,
			MaxDepth:      3,
			DomainRecheck: "0 */10 * * * *", // every 10 minutes
			SearchTimeout: 90 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:          20 * time.Second,
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			MaxRedirects:     10,
			MaxIdleConns:     100,
			RetryMaxAttempts: 3,
			RetryBaseBackoff: 2 * time.Second,
		},
		Browser: BrowserConfig{
			Enabled:           true,
			PoolSize:          2,
			NavigationTimeout: 30 * time.Second,
			ChallengeTimeout:  25 * time.Second,
			Headless:          true,
			NoSandbox:         true,
		},
		Validator: ValidatorConfig{
			Timeout:     8 * time.Second,
			Concurrency: 20,
		},
		Cache: CacheConfig{
			Backend:     "badger",
			Dir:         "./data/cache",
			SearchTTL:   900 * time.Second,
			CrawlJobTTL: time.Hour,
			StreamTTL:   600 * time.Second,
			Gate:        32,
		},
		Stream: StreamConfig{
			PerPluginTimeout: 20 * time.Second,
			TotalTimeout:     45 * time.Second,
			PreResolveTopN:   5,
			Language:         "de",
		},
	}
}

// LoadFromFiles loads configuration with precedence:
// defaults -> files (in order) -> environment variables.
// CLI flag overrides are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against struct tags.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ApplyFlagOverrides applies command-line overrides (highest priority).
func ApplyFlagOverrides(cfg *Config, port int, host, pluginDir string) {
	if port != 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if pluginDir != "" {
		cfg.Plugins.Dir = pluginDir
	}
}

// applyEnvOverrides maps SCAVENGARR_* environment variables onto the
// config. Only the settings an operator plausibly overrides per
// deployment are exposed.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCAVENGARR_ENVIRONMENT"); v != "" {
		cfg.Environment = strings.ToLower(v)
	}
	if v := os.Getenv("SCAVENGARR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SCAVENGARR_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SCAVENGARR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SCAVENGARR_PLUGIN_DIR"); v != "" {
		cfg.Plugins.Dir = v
	}
	if v := os.Getenv("SCAVENGARR_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("SCAVENGARR_HEADLESS"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Enabled = enabled
		}
	}
}

// IsProduction reports whether Torznab errors must collapse to empty feeds.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DrainDeadline parses the configured drain budget, defaulting to 10s.
func (c *Config) DrainDeadline() time.Duration {
	d, err := time.ParseDuration(c.Server.DrainDeadline)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

package models

// PluginMode discriminates the two base implementations.
type PluginMode string

const (
	ModeHTTP     PluginMode = "http"
	ModeHeadless PluginMode = "headless"
)

// PluginProvides states what a plugin's links point at.
type PluginProvides string

const (
	ProvidesStream   PluginProvides = "stream"
	ProvidesDownload PluginProvides = "download"
)

// PluginDescriptor is the static metadata read once per plugin from its
// descriptor file. Domains are ordered, first entry is the primary.
type PluginDescriptor struct {
	Name            string         `toml:"name" json:"name"`
	Provides        PluginProvides `toml:"provides" json:"provides"`
	DefaultLanguage string         `toml:"default_language" json:"default_language"`
	Mode            PluginMode     `toml:"mode" json:"mode"`
	Domains         []string       `toml:"domains" json:"domains"`

	// Torznab category code -> site-specific tag.
	Categories map[string]string `toml:"categories" json:"categories,omitempty"`

	// Site tuning, all optional.
	PageSize     int     `toml:"page_size" json:"page_size,omitempty"`
	MaxResults   int     `toml:"max_results" json:"max_results,omitempty"`
	DelaySeconds float64 `toml:"delay_seconds" json:"delay_seconds,omitempty"`
	Concurrency  int     `toml:"concurrency" json:"concurrency,omitempty"`
}

// SiteTag maps a Torznab category code to the site's own tag, falling back
// to the empty string when the descriptor has no mapping.
func (d *PluginDescriptor) SiteTag(torznabCode string) string {
	if d.Categories == nil {
		return ""
	}
	return d.Categories[torznabCode]
}

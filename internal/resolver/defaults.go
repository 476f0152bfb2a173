package resolver

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/browser"
)

// Default XFS-family hoster set. Most of the long tail differs only in
// domains and offline markers.
var defaultXFSConfigs = []XFSConfig{
	{
		Name:    "filemoon",
		Domains: []string{"filemoon.sx", "filemoon.to", "filemoon.in", "kerapoxy.cc"},
	},
	{
		Name:           "vidoza",
		Domains:        []string{"vidoza.net", "vidoza.co", "videzz.net"},
		OfflineMarkers: []string{"File was deleted", "File not found"},
	},
	{
		Name:    "supervideo",
		Domains: []string{"supervideo.tv", "supervideo.cc"},
	},
	{
		Name:    "streamwish",
		Domains: []string{"streamwish.com", "streamwish.to", "swiftplayers.com", "playerwish.com"},
	},
	{
		Name:    "vidmoly",
		Domains: []string{"vidmoly.me", "vidmoly.to", "vidmoly.net"},
	},
	{
		Name:           "dropload",
		Domains:        []string{"dropload.io", "dropload.tv"},
		OfflineMarkers: []string{"File Not Found", "file was removed"},
	},
}

// RegisterDefaults registers the built-in hoster resolvers. Dedicated
// extractors come first so a suffix match beats the generic XFS family.
// pool may be nil; then challenged XFS pages fail instead of retrying
// through the browser.
func RegisterDefaults(reg *Registry, client *http.Client, userAgent string, pool *browser.Pool, logger arbor.ILogger) {
	reg.Register(NewVOE(client, userAgent, logger))
	reg.Register(NewStreamtape(client, userAgent, logger))
	reg.Register(NewDoodStream(client, userAgent, logger))

	for _, cfg := range defaultXFSConfigs {
		xfs := NewXFS(cfg, client, userAgent, logger)
		if pool != nil {
			reg.Register(NewHeadlessFallback(xfs, pool, logger))
			continue
		}
		reg.Register(xfs)
	}

	logger.Info().
		Int("resolvers", len(reg.Names())).
		Msg("Hoster resolver registry initialized")
}

package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Torznab indexer API.
	mux.HandleFunc("/api/v1/torznab/indexers", s.app.TorznabHandler.IndexersHandler)
	mux.HandleFunc("/api/v1/torznab/", s.app.TorznabHandler.PluginHandler) // {plugin}, {plugin}/health

	// CrawlJob downloads.
	mux.HandleFunc("/api/v1/download/", s.app.DownloadHandler.Handle) // {job_id}, {job_id}/info

	// Stremio addon. The manifest is additionally exposed at the root path
	// because clients install addons from "<host>/manifest.json".
	mux.HandleFunc("/api/v1/stremio/manifest.json", s.app.StremioHandler.ManifestHandler)
	mux.HandleFunc("/manifest.json", s.app.StremioHandler.ManifestHandler)
	mux.HandleFunc("/api/v1/stremio/catalog/", s.app.StremioHandler.CatalogHandler)
	mux.HandleFunc("/api/v1/stremio/stream/", s.app.StremioHandler.StreamHandler)
	mux.HandleFunc("/api/v1/stremio/play/", s.app.StremioHandler.PlayHandler)

	// Ops endpoints.
	mux.HandleFunc("/health", s.app.StatusHandler.HealthzHandler)
	mux.HandleFunc("/healthz", s.app.StatusHandler.HealthzHandler)
	mux.HandleFunc("/readyz", s.app.StatusHandler.ReadyzHandler)
	mux.HandleFunc("/stats/metrics", s.app.StatusHandler.MetricsHandler)
	mux.HandleFunc("/stats/plugin-scores", s.app.StatusHandler.PluginScoresHandler)

	return mux
}

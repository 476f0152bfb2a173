package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/metrics"
	"github.com/scavengarr/scavengarr/internal/plugins"
)

// StatusHandler serves liveness, readiness, and the ops metrics endpoints.
type StatusHandler struct {
	registry  *plugins.Registry
	collector *metrics.Collector
	breakers  *metrics.BreakerTable
	version   string
	startedAt time.Time
	logger    arbor.ILogger
}

// NewStatusHandler creates the handler.
func NewStatusHandler(
	registry *plugins.Registry,
	collector *metrics.Collector,
	breakers *metrics.BreakerTable,
	version string,
	logger arbor.ILogger,
) *StatusHandler {
	return &StatusHandler{
		registry:  registry,
		collector: collector,
		breakers:  breakers,
		version:   version,
		startedAt: time.Now(),
		logger:    logger,
	}
}

// HealthzHandler handles GET /healthz - process liveness.
func (h *StatusHandler) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// ReadyzHandler handles GET /readyz - readiness: plugins discovered.
func (h *StatusHandler) ReadyzHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	names := h.registry.Names()
	if len(names) == 0 {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
			"reason": "no plugins discovered",
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ready",
		"plugins": names,
	})
}

// MetricsHandler handles GET /stats/metrics - per-plugin counters.
func (h *StatusHandler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, h.collector.Snapshot())
}

// PluginScoresHandler handles GET /stats/plugin-scores - breaker states
// alongside the latency/success stats.
func (h *StatusHandler) PluginScoresHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	statsByPlugin := make(map[string]metrics.PluginStats)
	for _, s := range h.collector.Snapshot() {
		statsByPlugin[s.Plugin] = s
	}
	states := h.breakers.Snapshot()

	type pluginScore struct {
		Plugin      string               `json:"plugin"`
		Breaker     string               `json:"breaker"`
		SuccessRate float64              `json:"success_rate"`
		Stats       *metrics.PluginStats `json:"stats,omitempty"`
	}

	scores := make([]pluginScore, 0, len(h.registry.Names()))
	for _, name := range h.registry.Names() {
		score := pluginScore{Plugin: name, Breaker: string(metrics.StateClosed), SuccessRate: 1.0}
		if state, ok := states[name]; ok {
			score.Breaker = string(state)
		}
		if s, ok := statsByPlugin[name]; ok {
			score.SuccessRate = s.SuccessRate()
			score.Stats = &s
		}
		scores = append(scores, score)
	}
	WriteJSON(w, http.StatusOK, scores)
}

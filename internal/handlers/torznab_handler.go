package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
	"github.com/scavengarr/scavengarr/internal/plugins"
	"github.com/scavengarr/scavengarr/internal/search"
	"github.com/scavengarr/scavengarr/internal/torznab"
)

// TorznabHandler serves the indexer API: caps, search, reachability.
type TorznabHandler struct {
	searchService *search.Service
	registry      *plugins.Registry
	presenter     *torznab.Presenter
	version       string
	maxResults    int
	production    bool
	logger        arbor.ILogger
}

// NewTorznabHandler creates the handler.
func NewTorznabHandler(
	searchService *search.Service,
	registry *plugins.Registry,
	presenter *torznab.Presenter,
	version string,
	maxResults int,
	production bool,
	logger arbor.ILogger,
) *TorznabHandler {
	return &TorznabHandler{
		searchService: searchService,
		registry:      registry,
		presenter:     presenter,
		version:       version,
		maxResults:    maxResults,
		production:    production,
		logger:        logger,
	}
}

// IndexersHandler handles GET /api/v1/torznab/indexers - lists plugins.
func (h *TorznabHandler) IndexersHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, h.registry.Descriptors())
}

// PluginHandler handles GET /api/v1/torznab/{plugin} and its /health
// subpath.
func (h *TorznabHandler) PluginHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/torznab/"), "/")
	pluginName, sub, _ := strings.Cut(rest, "/")
	if pluginName == "" || pluginName == "indexers" {
		WriteError(w, http.StatusNotFound, "unknown indexer")
		return
	}
	if sub == "health" {
		h.healthProbe(w, r, pluginName)
		return
	}

	switch r.URL.Query().Get("t") {
	case "caps":
		h.caps(w, pluginName)
	case "search", "tvsearch", "movie":
		h.search(w, r, pluginName)
	default:
		h.writeFailure(w, pluginName, http.StatusBadRequest, "unknown or missing t parameter")
	}
}

// caps needs only the descriptor, so a plugin whose construction would
// fail (headless without a browser pool) still serves its caps document.
func (h *TorznabHandler) caps(w http.ResponseWriter, pluginName string) {
	if _, err := h.registry.Descriptor(pluginName); err != nil {
		h.writeFailure(w, pluginName, statusFor(err), err.Error())
		return
	}
	body, err := torznab.RenderCaps("Scavengarr", h.version, h.maxResults)
	if err != nil {
		h.writeFailure(w, pluginName, http.StatusInternalServerError, err.Error())
		return
	}
	WriteXML(w, http.StatusOK, body)
}

func (h *TorznabHandler) search(w http.ResponseWriter, r *http.Request, pluginName string) {
	params := r.URL.Query()

	q := models.Query{
		Action:     models.ActionSearch,
		PluginName: pluginName,
		Q:          strings.TrimSpace(params.Get("q")),
		Category:   firstCategory(params.Get("cat")),
		Extended:   params.Get("extended") == "1",
	}
	q.Season = atoiDefault(params.Get("season"), 0)
	q.Episode = atoiDefault(params.Get("ep"), 0)
	q.Offset = atoiDefault(params.Get("offset"), 0)
	q.Limit = atoiDefault(params.Get("limit"), 0)

	// Empty q with extended=1 is the reachability probe.
	if q.Q == "" && q.Extended {
		h.extendedProbe(w, r, pluginName)
		return
	}

	resp, err := h.searchService.Search(r.Context(), q)
	if err != nil {
		h.logger.Warn().Err(err).Str("plugin", pluginName).Str("q", q.Q).Msg("Search request failed")
		h.writeFailure(w, pluginName, statusFor(err), err.Error())
		return
	}

	if resp.CacheHit {
		w.Header().Set("X-Cache", "HIT")
	}
	body, err := h.presenter.RenderResults(pluginName, resp.Items)
	if err != nil {
		h.writeFailure(w, pluginName, http.StatusInternalServerError, err.Error())
		return
	}
	WriteXML(w, http.StatusOK, body)
}

// extendedProbe checks base reachability and answers with a synthetic item
// on success, 503 on failure (production: empty feed, 200).
func (h *TorznabHandler) extendedProbe(w http.ResponseWriter, r *http.Request, pluginName string) {
	plugin, err := h.registry.Get(pluginName)
	if err != nil {
		h.writeFailure(w, pluginName, statusFor(err), err.Error())
		return
	}

	probeCtx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	if err := plugin.CheckReachable(probeCtx); err != nil {
		h.writeFailure(w, pluginName, http.StatusServiceUnavailable, "plugin unreachable: "+err.Error())
		return
	}

	body, err := h.presenter.RenderProbe(pluginName)
	if err != nil {
		h.writeFailure(w, pluginName, http.StatusInternalServerError, err.Error())
		return
	}
	WriteXML(w, http.StatusOK, body)
}

// healthProbe handles GET /api/v1/torznab/{plugin}/health.
func (h *TorznabHandler) healthProbe(w http.ResponseWriter, r *http.Request, pluginName string) {
	plugin, err := h.registry.Get(pluginName)
	if err != nil {
		WriteError(w, statusFor(err), err.Error())
		return
	}

	probeCtx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	probeErr := plugin.CheckReachable(probeCtx)

	status := map[string]interface{}{
		"plugin":    pluginName,
		"domains":   plugin.Descriptor().Domains,
		"reachable": probeErr == nil,
	}
	if probeErr != nil {
		status["error"] = probeErr.Error()
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// writeFailure applies the production error policy: any failure collapses
// to an empty feed with 200 so upstream managers keep the indexer enabled.
// Development surfaces the real status.
func (h *TorznabHandler) writeFailure(w http.ResponseWriter, pluginName string, status int, message string) {
	if h.production {
		body, err := h.presenter.RenderEmpty(pluginName)
		if err == nil {
			WriteXML(w, http.StatusOK, body)
			return
		}
	}
	WriteError(w, status, message)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrPluginNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrPluginLoad):
		return http.StatusUnprocessableEntity
	case errors.Is(err, interfaces.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// firstCategory keeps the first entry of a comma-separated cat parameter.
func firstCategory(cat string) string {
	first, _, _ := strings.Cut(cat, ",")
	return strings.TrimSpace(first)
}

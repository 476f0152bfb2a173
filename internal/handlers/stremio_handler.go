package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/stream"
	"github.com/scavengarr/scavengarr/internal/stremio"
)

// StremioHandler serves the addon: manifest, catalog, streams, play.
type StremioHandler struct {
	streams *stream.Service
	version string
	baseURL string
	logger  arbor.ILogger
}

// NewStremioHandler creates the handler. baseURL is the externally visible
// address used in play redirects.
func NewStremioHandler(streams *stream.Service, version, baseURL string, logger arbor.ILogger) *StremioHandler {
	return &StremioHandler{streams: streams, version: version, baseURL: baseURL, logger: logger}
}

// ManifestHandler handles GET /api/v1/stremio/manifest.json.
func (h *StremioHandler) ManifestHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, stremio.NewManifest(h.version))
}

// CatalogHandler handles GET /api/v1/stremio/catalog/{type}/{id}.json.
// Scavengarr publishes no catalogs; the endpoint answers an empty list so
// clients probing it get a well-formed response.
func (h *StremioHandler) CatalogHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"metas": []interface{}{}})
}

// StreamHandler handles GET /api/v1/stremio/stream/{type}/{id}.json where
// id is "tt<imdb>[:season:episode]".
func (h *StremioHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/stremio/stream/")
	mediaType, idPart, found := strings.Cut(rest, "/")
	if !found || (mediaType != "movie" && mediaType != "series") {
		WriteError(w, http.StatusBadRequest, "unsupported stream path")
		return
	}
	idPart = strings.TrimSuffix(idPart, ".json")

	req, err := parseStreamID(mediaType, idPart)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.BaseURL = h.baseURL

	ranked, err := h.streams.Streams(r.Context(), req)
	if err != nil {
		h.logger.Warn().Err(err).Str("id", idPart).Msg("Stream lookup failed")
		// Players treat errors as addon failure; an empty list degrades
		// gracefully instead.
		WriteJSON(w, http.StatusOK, stremio.StreamsResponse{Streams: []stremio.Stream{}})
		return
	}

	WriteJSON(w, http.StatusOK, stremio.FromRanked(ranked))
}

// PlayHandler handles GET /api/v1/stremio/play/{stream_id}: lazily resolve
// and redirect the player to the direct URL.
func (h *StremioHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	streamID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/stremio/play/"), "/")
	if streamID == "" {
		WriteError(w, http.StatusBadRequest, "missing stream id")
		return
	}

	resolved, err := h.streams.Play(r.Context(), streamID)
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			WriteError(w, http.StatusNotFound, "stream expired or unknown")
			return
		}
		h.logger.Warn().Err(err).Str("stream_id", streamID).Msg("Play resolution failed")
		WriteError(w, http.StatusBadGateway, "stream resolution failed")
		return
	}

	http.Redirect(w, r, resolved.DirectURL, http.StatusFound)
}

// parseStreamID splits "tt1234567[:season:episode]".
func parseStreamID(mediaType, id string) (stream.Request, error) {
	parts := strings.Split(id, ":")
	req := stream.Request{MediaType: mediaType, IMDBID: parts[0]}
	if req.IMDBID == "" || !strings.HasPrefix(req.IMDBID, "tt") {
		return req, errors.New("malformed id, expected tt-prefixed imdb id")
	}
	if len(parts) >= 3 {
		season, err1 := strconv.Atoi(parts[1])
		episode, err2 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil {
			return req, errors.New("malformed season/episode in id")
		}
		req.Season, req.Episode = season, episode
	}
	return req, nil
}

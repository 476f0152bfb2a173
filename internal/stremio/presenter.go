// Package stremio serializes the addon surface: the manifest and the
// stream objects with the behavior hints players need to replay headers.
package stremio

import (
	"fmt"
	"strings"

	"github.com/scavengarr/scavengarr/internal/models"
)

// Manifest is the addon manifest document.
type Manifest struct {
	ID            string         `json:"id"`
	Version       string         `json:"version"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Types         []string       `json:"types"`
	Resources     []string       `json:"resources"`
	Catalogs      []Catalog      `json:"catalogs"`
	IDPrefixes    []string       `json:"idPrefixes"`
	BehaviorHints *ManifestHints `json:"behaviorHints,omitempty"`
}

// Catalog is one manifest catalog entry.
type Catalog struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ManifestHints is the manifest-level behaviorHints block.
type ManifestHints struct {
	Configurable bool `json:"configurable"`
	P2P          bool `json:"p2p"`
}

// NewManifest builds the Scavengarr addon manifest.
func NewManifest(version string) Manifest {
	return Manifest{
		ID:          "community.scavengarr",
		Version:     version,
		Name:        "Scavengarr",
		Description: "Streams aggregated from self-hosted scraper plugins",
		Types:       []string{"movie", "series"},
		Resources:   []string{"stream"},
		Catalogs:    []Catalog{},
		IDPrefixes:  []string{"tt"},
		BehaviorHints: &ManifestHints{Configurable: false, P2P: false},
	}
}

// ProxyHeaders carries the headers the player must send when fetching.
type ProxyHeaders struct {
	Request map[string]string `json:"request,omitempty"`
}

// BehaviorHints is the per-stream hint block.
type BehaviorHints struct {
	NotWebReady  bool          `json:"notWebReady,omitempty"`
	BingeGroup   string        `json:"bingeGroup,omitempty"`
	ProxyHeaders *ProxyHeaders `json:"proxyHeaders,omitempty"`
}

// Stream is one entry of the stream response.
type Stream struct {
	Name          string         `json:"name,omitempty"`
	Title         string         `json:"title"`
	URL           string         `json:"url"`
	BehaviorHints *BehaviorHints `json:"behaviorHints,omitempty"`
}

// StreamsResponse is the body of /stremio/stream/....
type StreamsResponse struct {
	Streams []Stream `json:"streams"`
}

// FromRanked converts ranked candidates into Stremio stream objects.
// Pre-resolved entries carry proxy headers and notWebReady; deferred
// entries point at the play redirect and need no hints.
func FromRanked(ranked []models.RankedStream) StreamsResponse {
	streams := make([]Stream, 0, len(ranked))
	for i := range ranked {
		rs := &ranked[i]

		u := rs.DirectURL
		var hints *BehaviorHints
		if u != "" {
			hints = &BehaviorHints{
				NotWebReady: true,
				BingeGroup:  bingeGroup(rs),
			}
			if len(rs.RequestHeaders) > 0 {
				hints.ProxyHeaders = &ProxyHeaders{Request: rs.RequestHeaders}
			}
		} else {
			u = rs.PlayURL
		}
		if u == "" {
			continue
		}

		streams = append(streams, Stream{
			Name:          displayName(rs),
			Title:         displayTitle(rs),
			URL:           u,
			BehaviorHints: hints,
		})
	}
	return StreamsResponse{Streams: streams}
}

// displayName is the short label column: addon plus quality.
func displayName(rs *models.RankedStream) string {
	if rs.Quality == "" {
		return "Scavengarr"
	}
	return "Scavengarr\n" + rs.Quality
}

// displayTitle is the multi-line description: release, then hoster and
// language and size tags.
func displayTitle(rs *models.RankedStream) string {
	lines := []string{rs.ReleaseName}

	var tags []string
	if rs.Hoster != "" {
		tags = append(tags, rs.Hoster)
	}
	if rs.Language != "" {
		tags = append(tags, strings.ToUpper(rs.Language))
	}
	if rs.SizeBytes > 0 {
		tags = append(tags, formatSize(rs.SizeBytes))
	}
	if len(tags) > 0 {
		lines = append(lines, strings.Join(tags, " | "))
	}
	return strings.Join(lines, "\n")
}

func bingeGroup(rs *models.RankedStream) string {
	return fmt.Sprintf("scavengarr-%s-%s", rs.PluginName, rs.Quality)
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

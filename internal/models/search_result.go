package models

import "time"

// DownloadLink is one alternate link for a result, optionally tagged with
// the hoster it points at when the visible domain is a rotating alias.
type DownloadLink struct {
	HosterHint string `json:"hoster_hint,omitempty"`
	URL        string `json:"url"`
}

// SearchResult is the normalized output of one plugin row. Title and
// DownloadLink are required; everything else is optional and tolerated
// missing. The pipeline mutates DownloadLinks/ValidatedLinks/DownloadLink
// after link validation.
type SearchResult struct {
	Title       string `json:"title"`
	ReleaseName string `json:"release_name,omitempty"`
	Description string `json:"description,omitempty"`

	DownloadLink  string         `json:"download_link"`
	DownloadLinks []DownloadLink `json:"download_links,omitempty"`

	Size          string     `json:"size,omitempty"`
	Seeders       *int       `json:"seeders,omitempty"`
	Leechers      *int       `json:"leechers,omitempty"`
	Grabs         *int       `json:"grabs,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	SourceURL     string     `json:"source_url,omitempty"`
	Category      string     `json:"category,omitempty"`

	DownloadVolumeFactor *float64 `json:"download_volume_factor,omitempty"`
	UploadVolumeFactor   *float64 `json:"upload_volume_factor,omitempty"`

	// Populated by the scraping engine.
	ValidatedLinks   []string `json:"validated_links,omitempty"`
	ScrapedFromStage string   `json:"scraped_from_stage,omitempty"`
}

// AllLinks returns the primary link plus every alternate, deduplicated,
// preserving order with the primary first.
func (r *SearchResult) AllLinks() []string {
	seen := make(map[string]struct{}, 1+len(r.DownloadLinks))
	links := make([]string, 0, 1+len(r.DownloadLinks))
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		links = append(links, u)
	}
	add(r.DownloadLink)
	for _, l := range r.DownloadLinks {
		add(l.URL)
	}
	return links
}

// StageResult is the intermediate unit passed between scraping stages.
type StageResult struct {
	URL       string            `json:"url"`
	StageName string            `json:"stage_name"`
	Depth     int               `json:"depth"`
	Data      map[string]string `json:"data,omitempty"`
	NextLinks []string          `json:"next_links,omitempty"`
	Results   []SearchResult    `json:"results,omitempty"`
}

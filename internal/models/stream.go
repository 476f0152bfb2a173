package models

import "time"

// ResolvedStream is the output of a hoster resolver: a directly playable
// URL plus the headers a client must replay to avoid 403s.
type ResolvedStream struct {
	DirectURL       string            `json:"direct_url"`
	HeadersRequired map[string]string `json:"headers_required,omitempty"`
	ExpiresAt       *time.Time        `json:"expires_at,omitempty"`
	HosterName      string            `json:"hoster_name"`
}

// RankedStream is a scored candidate handed to the Stremio presenter.
// Exactly one of DirectURL or PlayURL is set: pre-resolved entries carry
// the direct URL, deferred entries point at the /play/{stream_id} redirect.
type RankedStream struct {
	Title       string  `json:"title"`
	ReleaseName string  `json:"release_name,omitempty"`
	Quality     string  `json:"quality,omitempty"`
	Language    string  `json:"language,omitempty"`
	SizeBytes   int64   `json:"size_bytes,omitempty"`
	Hoster      string  `json:"hoster,omitempty"`
	Score       float64 `json:"score"`

	DirectURL string `json:"direct_url,omitempty"`
	PlayURL   string `json:"play_url,omitempty"`

	RequestHeaders map[string]string `json:"request_headers,omitempty"`
	SourceURL      string            `json:"source_url,omitempty"`
	PluginName     string            `json:"plugin_name,omitempty"`
}

// ResolvedTitle is the metadata lookup result the stream use case matches
// release names against.
type ResolvedTitle struct {
	Title    string   `json:"title"`
	AltTitle string   `json:"alt_title,omitempty"`
	Year     int      `json:"year,omitempty"`
	Type     string   `json:"type"` // "movie" or "series"
	Aliases  []string `json:"aliases,omitempty"`
}

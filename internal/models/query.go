package models

import "strings"

// QueryAction is the Torznab operation requested by the caller.
type QueryAction string

const (
	ActionCaps   QueryAction = "caps"
	ActionSearch QueryAction = "search"
)

// Query is the normalized, immutable form of one inbound indexer request.
type Query struct {
	Action     QueryAction `json:"action"`
	PluginName string      `json:"plugin_name"`
	Q          string      `json:"q"`
	Category   string      `json:"category,omitempty"`
	Season     int         `json:"season,omitempty"`
	Episode    int         `json:"episode,omitempty"`
	Extended   bool        `json:"extended,omitempty"`
	Offset     int         `json:"offset,omitempty"`
	Limit      int         `json:"limit,omitempty"`
}

// NormalizedQ returns the query string form used for cache fingerprinting:
// lowercased with collapsed interior whitespace.
func (q Query) NormalizedQ() string {
	return strings.Join(strings.Fields(strings.ToLower(q.Q)), " ")
}

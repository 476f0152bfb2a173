// Package stream implements the Stremio use case: title resolution, plugin
// fan-out with per-plugin deadlines, scoring and ranking, and lazy or eager
// hoster resolution.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/httpclient"
	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
)

// CinemetaResolver looks titles up on the public Cinemeta addon, the
// canonical id-to-metadata source for Stremio ids.
type CinemetaResolver struct {
	client    *http.Client
	baseURL   string
	userAgent string
	logger    arbor.ILogger
}

// NewCinemeta creates the primary title resolver. baseURL "" selects the
// public instance.
func NewCinemeta(client *http.Client, userAgent, baseURL string, logger arbor.ILogger) *CinemetaResolver {
	if baseURL == "" {
		baseURL = "https://v3-cinemeta.strem.io"
	}
	return &CinemetaResolver{client: client, baseURL: baseURL, userAgent: userAgent, logger: logger}
}

type cinemetaResponse struct {
	Meta struct {
		Name        string   `json:"name"`
		ReleaseInfo string   `json:"releaseInfo"`
		Year        string   `json:"year"`
		Type        string   `json:"type"`
		Slug        string   `json:"slug"`
		Aliases     []string `json:"aka"`
	} `json:"meta"`
}

// Resolve fetches /meta/{type}/{imdbID}.json and maps it to ResolvedTitle.
func (c *CinemetaResolver) Resolve(ctx context.Context, imdbID, mediaType string) (*models.ResolvedTitle, error) {
	metaURL := fmt.Sprintf("%s/meta/%s/%s.json", c.baseURL, mediaType, imdbID)
	body, err := c.fetch(ctx, metaURL)
	if err != nil {
		return nil, err
	}

	var resp cinemetaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &httpclient.FetchError{Kind: httpclient.KindParse, URL: metaURL, Err: err}
	}
	if resp.Meta.Name == "" {
		return nil, fmt.Errorf("cinemeta: no metadata for %s", imdbID)
	}

	return &models.ResolvedTitle{
		Title:   resp.Meta.Name,
		Year:    firstYear(resp.Meta.Year, resp.Meta.ReleaseInfo),
		Type:    resp.Meta.Type,
		Aliases: resp.Meta.Aliases,
	}, nil
}

func (c *CinemetaResolver) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, httpclient.ClassifyError(u, err)
	}
	defer resp.Body.Close()
	if fe := httpclient.ClassifyStatus(u, resp.StatusCode); fe != nil {
		return nil, fe
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// firstYear extracts the leading year from strings like "2019" or
// "2019-2023".
func firstYear(candidates ...string) int {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if len(c) >= 4 {
			if y, err := strconv.Atoi(c[:4]); err == nil && y >= 1880 {
				return y
			}
		}
	}
	return 0
}

// SuggestResolver is the fallback: the public IMDB suggest endpoint, which
// answers for ids Cinemeta does not carry and returns alternate titles.
type SuggestResolver struct {
	client    *http.Client
	userAgent string
	logger    arbor.ILogger
}

// NewSuggest creates the fallback title resolver.
func NewSuggest(client *http.Client, userAgent string, logger arbor.ILogger) *SuggestResolver {
	return &SuggestResolver{client: client, userAgent: userAgent, logger: logger}
}

type suggestResponse struct {
	D []struct {
		ID    string `json:"id"`
		Label string `json:"l"`
		Year  int    `json:"y"`
		Kind  string `json:"q"`
	} `json:"d"`
}

// Resolve queries the suggest endpoint by id and picks the exact id match.
func (s *SuggestResolver) Resolve(ctx context.Context, imdbID, mediaType string) (*models.ResolvedTitle, error) {
	suggestURL := fmt.Sprintf("https://v2.sg.media-imdb.com/suggestion/t/%s.json", imdbID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, suggestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, httpclient.ClassifyError(suggestURL, err)
	}
	defer resp.Body.Close()
	if fe := httpclient.ClassifyStatus(suggestURL, resp.StatusCode); fe != nil {
		return nil, fe
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var suggest suggestResponse
	if err := json.Unmarshal(body, &suggest); err != nil {
		return nil, &httpclient.FetchError{Kind: httpclient.KindParse, URL: suggestURL, Err: err}
	}

	for _, hit := range suggest.D {
		if hit.ID == imdbID && hit.Label != "" {
			return &models.ResolvedTitle{
				Title: hit.Label,
				Year:  hit.Year,
				Type:  mediaType,
			}, nil
		}
	}
	return nil, fmt.Errorf("suggest: no match for %s", imdbID)
}

// ChainTitleResolver tries each resolver in order and returns the first
// success.
type ChainTitleResolver struct {
	resolvers []interfaces.TitleResolver
	logger    arbor.ILogger
}

// NewTitleChain builds the primary-then-fallback chain.
func NewTitleChain(logger arbor.ILogger, resolvers ...interfaces.TitleResolver) *ChainTitleResolver {
	return &ChainTitleResolver{resolvers: resolvers, logger: logger}
}

func (c *ChainTitleResolver) Resolve(ctx context.Context, imdbID, mediaType string) (*models.ResolvedTitle, error) {
	var lastErr error
	for _, r := range c.resolvers {
		title, err := r.Resolve(ctx, imdbID, mediaType)
		if err == nil {
			return title, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug().Err(err).Str("imdb_id", imdbID).Msg("Title resolver failed, trying next")
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no title resolvers configured")
	}
	return nil, lastErr
}

var (
	_ interfaces.TitleResolver = (*CinemetaResolver)(nil)
	_ interfaces.TitleResolver = (*SuggestResolver)(nil)
	_ interfaces.TitleResolver = (*ChainTitleResolver)(nil)
)

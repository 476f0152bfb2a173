package sites

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/scavengarr/scavengarr/internal/httpclient"
	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
	"github.com/scavengarr/scavengarr/internal/plugins"
)

func init() {
	plugins.RegisterFactory("moflix", func(deps plugins.Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		return &Moflix{BaseHTTP: plugins.NewBaseHTTP(deps, desc)}, nil
	})
}

// Moflix talks to the site's JSON API instead of scraping HTML: a search
// call lists titles, a per-title call lists the hoster videos.
type Moflix struct {
	*plugins.BaseHTTP
}

type moflixSearchResponse struct {
	Results []struct {
		ID          int    `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Year        int    `json:"year"`
		IsSeries    bool   `json:"is_series"`
	} `json:"results"`
}

type moflixTitleResponse struct {
	Title struct {
		Videos []struct {
			Name    string `json:"name"`
			Src     string `json:"src"`
			Quality string `json:"quality"`
			Season  int    `json:"season"`
			Episode int    `json:"episode"`
		} `json:"videos"`
	} `json:"title"`
}

// Search queries the API and expands each matching title into one result
// per distinct quality, hoster links attached as alternates.
func (m *Moflix) Search(ctx context.Context, q models.Query) ([]models.SearchResult, error) {
	base, err := m.BaseURL(ctx)
	if err != nil {
		return nil, err
	}

	searchURL := fmt.Sprintf("%s/api/v1/search/%s?loader=searchPage", base, url.PathEscape(q.Q))
	body, err := m.FetchString(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	var search moflixSearchResponse
	if err := json.Unmarshal([]byte(body), &search); err != nil {
		return nil, &httpclient.FetchError{Kind: httpclient.KindParse, URL: searchURL, Err: err}
	}

	var detailURLs []string
	meta := make(map[string]struct {
		name string
		year int
	})
	for _, hit := range search.Results {
		if !matchesQuery(hit.Name, q.Q) {
			continue
		}
		titleURL := fmt.Sprintf("%s/api/v1/titles/%d?loader=titlePage", base, hit.ID)
		detailURLs = append(detailURLs, titleURL)
		meta[titleURL] = struct {
			name string
			year int
		}{hit.Name, hit.Year}
		if len(detailURLs) >= m.MaxResults() {
			break
		}
	}

	return fetchDetails(ctx, m.MaxDepth(), detailURLs, func(ctx context.Context, titleURL string) ([]models.SearchResult, error) {
		info := meta[titleURL]
		return m.fetchTitle(ctx, titleURL, info.name, info.year, q)
	})
}

func (m *Moflix) fetchTitle(ctx context.Context, titleURL, name string, year int, q models.Query) ([]models.SearchResult, error) {
	body, err := m.FetchString(ctx, titleURL)
	if err != nil {
		return nil, err
	}
	var title moflixTitleResponse
	if err := json.Unmarshal([]byte(body), &title); err != nil {
		return nil, &httpclient.FetchError{Kind: httpclient.KindParse, URL: titleURL, Err: err}
	}

	// Group hoster videos by quality so each quality is one result row.
	byQuality := make(map[string][]models.DownloadLink)
	for _, v := range title.Title.Videos {
		if v.Src == "" {
			continue
		}
		if q.Season != 0 && v.Season != q.Season {
			continue
		}
		if q.Episode != 0 && v.Episode != q.Episode {
			continue
		}
		quality := v.Quality
		if quality == "" {
			quality = "unknown"
		}
		byQuality[quality] = append(byQuality[quality], models.DownloadLink{
			HosterHint: hosterFromURL(v.Src),
			URL:        v.Src,
		})
	}

	var results []models.SearchResult
	for quality, links := range byQuality {
		releaseName := name
		if year > 0 {
			releaseName = fmt.Sprintf("%s (%d)", name, year)
		}
		if quality != "unknown" {
			releaseName += " " + quality
		}
		results = append(results, models.SearchResult{
			Title:         releaseName,
			DownloadLink:  links[0].URL,
			DownloadLinks: links,
			SourceURL:     titleURL,
		})
	}
	return results, nil
}

var _ interfaces.Plugin = (*Moflix)(nil)

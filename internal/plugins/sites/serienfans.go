package sites

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/scavengarr/scavengarr/internal/httpclient"
	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
	"github.com/scavengarr/scavengarr/internal/plugins"
)

func init() {
	plugins.RegisterFactory("serienfans", func(deps plugins.Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		return &Serienfans{BaseHTTP: plugins.NewBaseHTTP(deps, desc)}, nil
	})
}

// Serienfans provides download links (filecrypt folders), not streams. A
// JSON suggest endpoint finds the series page; season markup carries the
// release rows with mirror links.
type Serienfans struct {
	*plugins.BaseHTTP
}

type sfSuggestResponse struct {
	Result []struct {
		Title   string `json:"title"`
		URLName string `json:"url_name"`
		Year    string `json:"year"`
	} `json:"result"`
}

type sfSeasonResponse struct {
	HTML string `json:"html"`
}

// Search finds matching series, then scrapes the requested season's
// release rows. Season 0 means every season the page offers.
func (s *Serienfans) Search(ctx context.Context, q models.Query) ([]models.SearchResult, error) {
	base, err := s.BaseURL(ctx)
	if err != nil {
		return nil, err
	}

	suggestURL := base + "/api/v1/search?q=" + url.QueryEscape(q.Q) + "&ql=DE"
	body, err := s.FetchString(ctx, suggestURL)
	if err != nil {
		return nil, err
	}
	var suggest sfSuggestResponse
	if err := json.Unmarshal([]byte(body), &suggest); err != nil {
		return nil, &httpclient.FetchError{Kind: httpclient.KindParse, URL: suggestURL, Err: err}
	}

	var results []models.SearchResult
	for _, hit := range suggest.Result {
		if !matchesQuery(hit.Title, q.Q) {
			continue
		}
		rs, err := s.scrapeSeries(ctx, base, hit.URLName, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		results = append(results, rs...)
		if len(results) >= s.MaxResults() {
			results = results[:s.MaxResults()]
			break
		}
	}
	return results, nil
}

// scrapeSeries loads the series page for its session id, then the season
// JSON fragments holding the release rows.
func (s *Serienfans) scrapeSeries(ctx context.Context, base, urlName string, q models.Query) ([]models.SearchResult, error) {
	seriesURL := base + "/" + urlName
	doc, err := s.Fetch(ctx, seriesURL)
	if err != nil {
		return nil, err
	}

	session, ok := doc.Find("#sid[value]").Attr("value")
	if !ok {
		return nil, fmt.Errorf("serienfans: no session id on %s", seriesURL)
	}

	seasons := []int{q.Season}
	if q.Season == 0 {
		seasons = seasons[:0]
		doc.Find("div.seasonChoose option[value]").Each(func(_ int, opt *goquery.Selection) {
			v, _ := opt.Attr("value")
			var n int
			if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
				seasons = append(seasons, n)
			}
		})
		if len(seasons) == 0 {
			seasons = []int{1}
		}
	}

	var results []models.SearchResult
	for _, season := range seasons {
		fragURL := fmt.Sprintf("%s/api/v1/%s/season/%d?_=%s", base, urlName, season, session)
		body, err := s.FetchString(ctx, fragURL)
		if err != nil {
			continue
		}
		var frag sfSeasonResponse
		if err := json.Unmarshal([]byte(body), &frag); err != nil {
			continue
		}
		rs, err := s.parseSeasonHTML(frag.HTML, seriesURL, q)
		if err != nil {
			continue
		}
		results = append(results, rs...)
	}
	return results, nil
}

// parseSeasonHTML extracts release rows from a season fragment. Each row is
// one release with size, hoster mirrors, and optionally per-episode links.
func (s *Serienfans) parseSeasonHTML(html, sourceURL string, q models.Query) ([]models.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var results []models.SearchResult
	doc.Find("div.entry").Each(func(_ int, entry *goquery.Selection) {
		release := cleanText(entry.Find("h3").First().Text())
		if release == "" {
			return
		}
		size := cleanText(entry.Find("div.morespec").Text())
		if i := strings.Index(size, "|"); i >= 0 {
			size = cleanText(size[:i])
		}

		var links []models.DownloadLink
		entry.Find("a.dlb.row[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			link := absolutize(sourceURL, href)
			if link == "" {
				return
			}
			hoster := strings.ToLower(cleanText(a.Find("span.dl-hoster").Text()))
			links = append(links, models.DownloadLink{HosterHint: hoster, URL: link})
		})
		if len(links) == 0 {
			return
		}

		// sXXeYY queries keep only rows naming that episode; season packs
		// stay in because they contain the episode.
		if q.Episode > 0 {
			tag := fmt.Sprintf("e%02d", q.Episode)
			lower := strings.ToLower(release)
			if strings.Contains(lower, "e0") && !strings.Contains(lower, tag) {
				return
			}
		}

		results = append(results, models.SearchResult{
			Title:         release,
			ReleaseName:   release,
			Size:          size,
			DownloadLink:  links[0].URL,
			DownloadLinks: links,
			SourceURL:     sourceURL,
		})
	})
	return results, nil
}

var _ interfaces.Plugin = (*Serienfans)(nil)

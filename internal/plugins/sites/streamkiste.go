package sites

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
	"github.com/scavengarr/scavengarr/internal/plugins"
)

func init() {
	plugins.RegisterFactory("streamkiste", func(deps plugins.Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		base, err := plugins.NewBaseHeadless(deps, desc)
		if err != nil {
			return nil, err
		}
		return &Streamkiste{BaseHeadless: base}, nil
	})
}

// Streamkiste is DDoS-Guard fronted; its stream tabs only materialize after
// the page scripts run, so it uses the headless base.
type Streamkiste struct {
	*plugins.BaseHeadless
}

// Search renders the search listing, then each movie page for stream tabs.
func (s *Streamkiste) Search(ctx context.Context, q models.Query) ([]models.SearchResult, error) {
	base, err := s.BaseURL(ctx)
	if err != nil {
		return nil, err
	}

	searchURL := base + "/include/live.php?keyword=" + url.QueryEscape(q.Q)
	doc, err := s.Fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	titleByURL := make(map[string]string)
	var detailURLs []string
	doc.Find("a[href*='/movie/']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		title := cleanText(a.Text())
		link := absolutize(base, href)
		if title == "" || link == "" || !matchesQuery(title, q.Q) {
			return
		}
		if _, seen := titleByURL[link]; seen {
			return
		}
		titleByURL[link] = title
		detailURLs = append(detailURLs, link)
	})
	if len(detailURLs) > s.MaxResults() {
		detailURLs = detailURLs[:s.MaxResults()]
	}

	var results []models.SearchResult
	for _, detailURL := range detailURLs {
		rs, err := s.scrapeDetail(ctx, detailURL, titleByURL[detailURL])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		results = append(results, rs...)
	}
	return results, nil
}

func (s *Streamkiste) scrapeDetail(ctx context.Context, detailURL, title string) ([]models.SearchResult, error) {
	doc, err := s.Fetch(ctx, detailURL)
	if err != nil {
		return nil, err
	}

	var links []models.DownloadLink
	seen := make(map[string]struct{})
	doc.Find("div#stream-links a[href], ul.host-list a[data-link]").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("data-link")
		if !ok {
			href, _ = a.Attr("href")
		}
		link := absolutize(detailURL, href)
		if link == "" || strings.Contains(link, "trailer") {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		hoster := strings.ToLower(cleanText(a.Find("span.hoster-name").Text()))
		if hoster == "" {
			hoster = hosterFromURL(link)
		}
		links = append(links, models.DownloadLink{HosterHint: hoster, URL: link})
	})
	if len(links) == 0 {
		return nil, nil
	}

	release := cleanText(doc.Find("div.movie-release").Text())

	return []models.SearchResult{{
		Title:         title,
		ReleaseName:   release,
		DownloadLink:  links[0].URL,
		DownloadLinks: links,
		SourceURL:     detailURL,
	}}, nil
}

var _ interfaces.Plugin = (*Streamkiste)(nil)

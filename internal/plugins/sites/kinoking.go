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
	plugins.RegisterFactory("kinoking", func(deps plugins.Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		base, err := plugins.NewBaseHeadless(deps, desc)
		if err != nil {
			return nil, err
		}
		return &Kinoking{BaseHeadless: base}, nil
	})
}

// Kinoking sits behind a Cloudflare interstitial and renders its hoster
// list client-side, so it runs on the headless base.
type Kinoking struct {
	*plugins.BaseHeadless
}

// Search renders the search page, then each title page for its embeds.
func (k *Kinoking) Search(ctx context.Context, q models.Query) ([]models.SearchResult, error) {
	base, err := k.BaseURL(ctx)
	if err != nil {
		return nil, err
	}

	searchURL := base + "/?s=" + url.QueryEscape(q.Q)
	doc, err := k.Fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	titleByURL := make(map[string]string)
	var detailURLs []string
	doc.Find("div.result-item article .title a[href]").Each(func(_ int, a *goquery.Selection) {
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
	if len(detailURLs) > k.MaxResults() {
		detailURLs = detailURLs[:k.MaxResults()]
	}

	// The headless pool caps concurrency; fetch details sequentially to
	// keep one site from monopolizing it.
	var results []models.SearchResult
	for _, detailURL := range detailURLs {
		rs, err := k.scrapeDetail(ctx, detailURL, titleByURL[detailURL])
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

func (k *Kinoking) scrapeDetail(ctx context.Context, detailURL, title string) ([]models.SearchResult, error) {
	doc, err := k.Fetch(ctx, detailURL)
	if err != nil {
		return nil, err
	}

	var links []models.DownloadLink
	seen := make(map[string]struct{})
	doc.Find("#playeroptionsul li[data-option], iframe.metaframe[src]").Each(func(_ int, s *goquery.Selection) {
		embed, ok := s.Attr("data-option")
		if !ok {
			embed, _ = s.Attr("src")
		}
		link := absolutize(detailURL, embed)
		if link == "" || strings.Contains(link, "youtube.com") {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, models.DownloadLink{HosterHint: hosterFromURL(link), URL: link})
	})
	if len(links) == 0 {
		return nil, nil
	}

	return []models.SearchResult{{
		Title:         title,
		DownloadLink:  links[0].URL,
		DownloadLinks: links,
		SourceURL:     detailURL,
	}}, nil
}

var _ interfaces.Plugin = (*Kinoking)(nil)

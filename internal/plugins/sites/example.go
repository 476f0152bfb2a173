package sites

import (
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
	"github.com/scavengarr/scavengarr/internal/plugins"
)

func init() {
	plugins.RegisterFactory("example", func(deps plugins.Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		return &Example{BaseHTTP: plugins.NewBaseHTTP(deps, desc)}, nil
	})
}

// Example is the reference adapter: one listing page, no detail fan-out.
// It doubles as the template new adapters start from.
type Example struct {
	*plugins.BaseHTTP
}

// Search scrapes the listing pages until the site runs out of rows or the
// result ceiling is hit.
func (e *Example) Search(ctx context.Context, q models.Query) ([]models.SearchResult, error) {
	base, err := e.BaseURL(ctx)
	if err != nil {
		return nil, err
	}

	var results []models.SearchResult
	for page := 1; len(results) < e.MaxResults(); page++ {
		pageURL := fmt.Sprintf("%s/search?q=%s&page=%d", base, url.QueryEscape(q.Q), page)
		doc, err := e.Fetch(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			break
		}

		pageResults := e.parseListing(doc, base)
		if len(pageResults) == 0 {
			break
		}
		results = append(results, pageResults...)
	}

	if len(results) > e.MaxResults() {
		results = results[:e.MaxResults()]
	}
	return results, nil
}

func (e *Example) parseListing(doc *goquery.Document, base string) []models.SearchResult {
	var results []models.SearchResult
	doc.Find("div.release-row").Each(func(_ int, row *goquery.Selection) {
		title := cleanText(row.Find("a.release-title").Text())
		href, _ := row.Find("a.release-link").Attr("href")
		link := absolutize(base, href)
		if title == "" || link == "" {
			return
		}
		results = append(results, models.SearchResult{
			Title:        title,
			DownloadLink: link,
			Size:         cleanText(row.Find("span.release-size").Text()),
		})
	})
	return results
}

var _ interfaces.Plugin = (*Example)(nil)

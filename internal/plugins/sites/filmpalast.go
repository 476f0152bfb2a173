package sites

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
	"github.com/scavengarr/scavengarr/internal/plugins"
)

func init() {
	plugins.RegisterFactory("filmpalast", func(deps plugins.Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		return &Filmpalast{BaseHTTP: plugins.NewBaseHTTP(deps, desc)}, nil
	})
}

// Filmpalast scrapes filmpalast's title search, then each title page for
// its hoster stream links. Language defaults to German per the site.
type Filmpalast struct {
	*plugins.BaseHTTP
}

// Search runs the two-stage scrape: listing, then bounded detail fan-out.
func (f *Filmpalast) Search(ctx context.Context, q models.Query) ([]models.SearchResult, error) {
	base, err := f.BaseURL(ctx)
	if err != nil {
		return nil, err
	}

	searchURL := base + "/search/title/" + url.PathEscape(q.Q)
	doc, err := f.Fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	type listed struct {
		title string
		url   string
	}
	var titles []listed
	doc.Find("article.liste a.rb[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		title := cleanText(a.Text())
		link := absolutize(base, href)
		if title == "" || link == "" || !matchesQuery(title, q.Q) {
			return
		}
		titles = append(titles, listed{title: title, url: link})
	})
	if len(titles) > f.MaxResults() {
		titles = titles[:f.MaxResults()]
	}

	detailURLs := make([]string, len(titles))
	titleByURL := make(map[string]string, len(titles))
	for i, t := range titles {
		detailURLs[i] = t.url
		titleByURL[t.url] = t.title
	}

	return fetchDetails(ctx, f.MaxDepth(), detailURLs, func(ctx context.Context, detailURL string) ([]models.SearchResult, error) {
		return f.scrapeDetail(ctx, detailURL, titleByURL[detailURL])
	})
}

// scrapeDetail pulls the hoster links off one title page. The first stream
// link becomes the primary; the rest ride along as alternates.
func (f *Filmpalast) scrapeDetail(ctx context.Context, detailURL, title string) ([]models.SearchResult, error) {
	doc, err := f.Fetch(ctx, detailURL)
	if err != nil {
		return nil, err
	}

	var links []models.DownloadLink
	doc.Find("ul.currentStreamLinks li a.iconPlay").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			href, ok = a.Attr("data-player-url")
		}
		if !ok {
			return
		}
		link := absolutize(detailURL, href)
		if link == "" {
			return
		}
		hoster := strings.ToLower(cleanText(a.Find("p").Text()))
		if hoster == "" {
			hoster = hosterFromURL(link)
		}
		links = append(links, models.DownloadLink{HosterHint: hoster, URL: link})
	})
	if len(links) == 0 {
		return nil, fmt.Errorf("filmpalast: no stream links on %s", detailURL)
	}

	result := models.SearchResult{
		Title:         title,
		DownloadLink:  links[0].URL,
		DownloadLinks: links,
		SourceURL:     detailURL,
		Description:   cleanText(doc.Find("span[itemprop=description]").Text()),
	}
	return []models.SearchResult{result}, nil
}

var _ interfaces.Plugin = (*Filmpalast)(nil)

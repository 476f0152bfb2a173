package sites

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
	"github.com/scavengarr/scavengarr/internal/plugins"
)

func init() {
	plugins.RegisterFactory("ddlwarez", func(deps plugins.Deps, desc *models.PluginDescriptor) (interfaces.Plugin, error) {
		return &DDLWarez{BaseHTTP: plugins.NewBaseHTTP(deps, desc)}, nil
	})
}

// DDLWarez is a download-link board: paginated search listing, one post per
// release, each post carrying mirror links behind a crypter.
type DDLWarez struct {
	*plugins.BaseHTTP
}

// Search walks the paginated listing and fans out to release posts.
func (d *DDLWarez) Search(ctx context.Context, q models.Query) ([]models.SearchResult, error) {
	base, err := d.BaseURL(ctx)
	if err != nil {
		return nil, err
	}

	titleByURL := make(map[string]string)
	var postURLs []string
	for page := 1; len(postURLs) < d.MaxResults(); page++ {
		listURL := fmt.Sprintf("%s/?s=%s&page=%d", base, url.QueryEscape(q.Q), page)
		doc, err := d.Fetch(ctx, listURL)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			break
		}

		found := 0
		doc.Find("h2.post-title a[href]").Each(func(_ int, a *goquery.Selection) {
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
			postURLs = append(postURLs, link)
			found++
		})
		if found == 0 {
			break
		}
	}
	if len(postURLs) > d.MaxResults() {
		postURLs = postURLs[:d.MaxResults()]
	}

	return fetchDetails(ctx, d.MaxDepth(), postURLs, func(ctx context.Context, postURL string) ([]models.SearchResult, error) {
		return d.scrapePost(ctx, postURL, titleByURL[postURL])
	})
}

// scrapePost extracts mirror download links, size, and date from one post.
func (d *DDLWarez) scrapePost(ctx context.Context, postURL, title string) ([]models.SearchResult, error) {
	doc, err := d.Fetch(ctx, postURL)
	if err != nil {
		return nil, err
	}

	var links []models.DownloadLink
	seen := make(map[string]struct{})
	doc.Find("div.download-links a[href], a.dl-button[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		link := absolutize(postURL, href)
		if link == "" {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		hoster := strings.ToLower(cleanText(a.Text()))
		if hoster == "" || len(hoster) > 24 {
			hoster = hosterFromURL(link)
		}
		links = append(links, models.DownloadLink{HosterHint: hoster, URL: link})
	})
	if len(links) == 0 {
		return nil, nil
	}

	size := ""
	doc.Find("div.post-info li").Each(func(_ int, li *goquery.Selection) {
		text := cleanText(li.Text())
		if strings.HasPrefix(strings.ToLower(text), "größe:") || strings.HasPrefix(strings.ToLower(text), "size:") {
			if i := strings.Index(text, ":"); i >= 0 {
				size = cleanText(text[i+1:])
			}
		}
	})

	var published *time.Time
	if dateAttr, ok := doc.Find("time.post-date[datetime]").Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, dateAttr); err == nil {
			published = &t
		}
	}

	return []models.SearchResult{{
		Title:         title,
		ReleaseName:   title,
		Size:          size,
		PublishedDate: published,
		DownloadLink:  links[0].URL,
		DownloadLinks: links,
		SourceURL:     postURL,
	}}, nil
}

var _ interfaces.Plugin = (*DDLWarez)(nil)

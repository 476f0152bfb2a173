// Package sites holds the built-in site adapters. Each adapter registers
// its factory at init time; the binary selects which ones actually run by
// the descriptor files present in the plugin directory.
package sites

import (
	"context"
	"net/url"
	"strings"

	"github.com/scavengarr/scavengarr/internal/models"
	"github.com/scavengarr/scavengarr/internal/scrape"
)

// absolutize resolves href against base, returning "" for unusable hrefs.
func absolutize(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || href == "#" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

// cleanText collapses runs of whitespace in scraped node text.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// hosterFromURL lowercases the second-level domain as a hoster hint, so
// "https://voe.sx/e/x" yields "voe". Unknown shapes return "".
func hosterFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

// fetchDetails runs the detail stage across every URL via the stage
// walker: bounded parallelism, visited dedup, individual failures dropped.
// maxDepth caps the walk for stages that discover follow-up pages.
func fetchDetails(ctx context.Context, maxDepth int, urls []string, fetch func(ctx context.Context, url string) ([]models.SearchResult, error)) ([]models.SearchResult, error) {
	w := &scrape.Walker{MaxDepth: maxDepth, Parallelism: 8}
	return w.Walk(ctx, urls, func(ctx context.Context, u string, _ int) (*models.StageResult, error) {
		results, err := fetch(ctx, u)
		if err != nil {
			return nil, err
		}
		for i := range results {
			results[i].ScrapedFromStage = "detail"
		}
		return &models.StageResult{URL: u, StageName: "detail", Results: results}, nil
	})
}

// matchesQuery reports a loose containment match of every query term in the
// candidate title, for sites whose search endpoint over-returns.
func matchesQuery(title, q string) bool {
	if q == "" {
		return true
	}
	t := strings.ToLower(title)
	for _, term := range strings.Fields(strings.ToLower(q)) {
		if !strings.Contains(t, term) {
			return false
		}
	}
	return true
}

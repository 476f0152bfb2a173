package torznab

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scavengarr/scavengarr/internal/models"
	"github.com/scavengarr/scavengarr/internal/search"
)

func testPresenter() *Presenter {
	return &Presenter{ServerTitle: "Scavengarr", BaseURL: "http://localhost:8080"}
}

func intPtr(n int) *int { return &n }

func TestRenderCaps(t *testing.T) {
	data, err := RenderCaps("Scavengarr", "1.0.0", 1000)
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, text, `<server title="Scavengarr" version="1.0.0">`)
	assert.Contains(t, text, `<limits max="1000" default="100">`)
	assert.Contains(t, text, `<search name="search" available="yes" supportedParams="q">`)
	assert.Contains(t, text, `<tv-search name="tv-search" available="yes" supportedParams="q,season,ep">`)
	assert.Contains(t, text, `<category id="2000" name="Movies">`)
	assert.Contains(t, text, `<category id="5000" name="TV">`)
	assert.Contains(t, text, `<category id="8000" name="Other">`)
}

func TestRenderResults(t *testing.T) {
	published := time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC)
	items := []search.Item{
		{
			JobID: "job-123",
			Result: models.SearchResult{
				Title:         "Inception 2010",
				ReleaseName:   "Inception.2010.1080p.BluRay.x264-GROUP",
				DownloadLink:  "https://hoster.example/file1",
				Description:   "German dub",
				Size:          "4.5 GB",
				Category:      "2000",
				Seeders:       intPtr(10),
				Leechers:      intPtr(5),
				Grabs:         intPtr(42),
				PublishedDate: &published,
			},
		},
	}

	data, err := testPresenter().RenderResults("filmpalast", items)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `xmlns:torznab="http://torznab.com/schemas/2015/feed"`)
	assert.Contains(t, text, "<title>Scavengarr - filmpalast</title>")

	// The release name wins over the display title.
	assert.Contains(t, text, "<title>Inception.2010.1080p.BluRay.x264-GROUP</title>")

	// The guid is the original link; the consumer-facing link is the job.
	assert.Contains(t, text, `<guid isPermaLink="false">https://hoster.example/file1</guid>`)
	assert.Contains(t, text, "<link>http://localhost:8080/api/v1/download/job-123</link>")
	assert.Contains(t, text, `type="application/x-crawljob"`)
	assert.Contains(t, text, `length="4831838208"`)

	assert.Contains(t, text, `<torznab:attr name="category" value="2000">`)
	assert.Contains(t, text, `<torznab:attr name="size" value="4831838208">`)
	assert.Contains(t, text, `<torznab:attr name="seeders" value="10">`)
	// peers = seeders + leechers
	assert.Contains(t, text, `<torznab:attr name="peers" value="15">`)
	assert.Contains(t, text, `<torznab:attr name="grabs" value="42">`)

	assert.Contains(t, text, "<pubDate>Sun, 01 Feb 2026 10:30:00 +0000</pubDate>")
}

func TestRenderResults_NoJobFallsBackToDirectLink(t *testing.T) {
	items := []search.Item{
		{
			Result: models.SearchResult{
				Title:        "Sparse Result",
				DownloadLink: "https://hoster.example/direct",
			},
		},
	}

	data, err := testPresenter().RenderResults("site", items)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "<link>https://hoster.example/direct</link>")
	assert.NotContains(t, text, "enclosure")
	assert.NotContains(t, text, "/api/v1/download/")
}

func TestRenderResults_OmitsMissingAttributes(t *testing.T) {
	items := []search.Item{
		{
			JobID: "job-1",
			Result: models.SearchResult{
				Title:        "Minimal",
				DownloadLink: "https://hoster.example/x",
			},
		},
	}

	data, err := testPresenter().RenderResults("site", items)
	require.NoError(t, err)
	text := string(data)

	assert.NotContains(t, text, `name="size"`)
	assert.NotContains(t, text, `name="seeders"`)
	assert.NotContains(t, text, `name="peers"`)
	assert.NotContains(t, text, "pubDate")
}

func TestRenderEmpty(t *testing.T) {
	data, err := testPresenter().RenderEmpty("site")
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "<rss")
	assert.Contains(t, text, "<channel>")
	assert.NotContains(t, text, "<item>")
}

func TestRenderProbe(t *testing.T) {
	data, err := testPresenter().RenderProbe("filmpalast")
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "<title>filmpalast test</title>")
	assert.Contains(t, text, `<torznab:attr name="category" value="8000">`)
}

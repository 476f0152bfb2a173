// Package torznab serializes search output into the Torznab/Newznab XML
// dialect consumed by Prowlarr, Sonarr, and Radarr.
package torznab

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/scavengarr/scavengarr/internal/release"
	"github.com/scavengarr/scavengarr/internal/search"
)

const (
	nsTorznab     = "http://torznab.com/schemas/2015/feed"
	crawljobMIME  = "application/x-crawljob"
	xmlDeclHeader = xml.Header
)

// Caps document.

type capsServer struct {
	Title   string `xml:"title,attr"`
	Version string `xml:"version,attr"`
}

type capsLimits struct {
	Max     int `xml:"max,attr"`
	Default int `xml:"default,attr"`
}

type capsSearchMode struct {
	Name            string `xml:"name,attr"`
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

type capsCategory struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

type capsDoc struct {
	XMLName    xml.Name       `xml:"caps"`
	Server     capsServer     `xml:"server"`
	Limits     capsLimits     `xml:"limits"`
	Searching  capsSearching  `xml:"searching"`
	Categories capsCategories `xml:"categories"`
}

type capsSearching struct {
	Search    capsSearchMode `xml:"search"`
	TVSearch  capsSearchMode `xml:"tv-search"`
	MovSearch capsSearchMode `xml:"movie-search"`
}

type capsCategories struct {
	Category []capsCategory `xml:"category"`
}

// standardCategories is the Torznab vocabulary Scavengarr serves.
var standardCategories = []capsCategory{
	{ID: "2000", Name: "Movies"},
	{ID: "5000", Name: "TV"},
	{ID: "8000", Name: "Other"},
}

// RenderCaps builds the capabilities document for one plugin.
func RenderCaps(serverTitle, version string, maxLimit int) ([]byte, error) {
	doc := capsDoc{
		Server: capsServer{Title: serverTitle, Version: version},
		Limits: capsLimits{Max: maxLimit, Default: 100},
		Searching: capsSearching{
			Search:    capsSearchMode{Name: "search", Available: "yes", SupportedParams: "q"},
			TVSearch:  capsSearchMode{Name: "tv-search", Available: "yes", SupportedParams: "q,season,ep"},
			MovSearch: capsSearchMode{Name: "movie-search", Available: "yes", SupportedParams: "q"},
		},
		Categories: capsCategories{Category: standardCategories},
	}
	return marshalDoc(doc)
}

// RSS results document.

type torznabAttr struct {
	XMLName xml.Name `xml:"torznab:attr"`
	Name    string   `xml:"name,attr"`
	Value   string   `xml:"value,attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	GUID        rssGUID       `xml:"guid"`
	Link        string        `xml:"link"`
	PubDate     string        `xml:"pubDate,omitempty"`
	Description string        `xml:"description,omitempty"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
	Attrs       []torznabAttr `xml:"torznab:attr"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description,omitempty"`
	Link        string    `xml:"link,omitempty"`
	Items       []rssItem `xml:"item"`
}

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	NSTorz  string     `xml:"xmlns:torznab,attr"`
	Channel rssChannel `xml:"channel"`
}

// Presenter renders search items against the server's own base URL.
type Presenter struct {
	ServerTitle string
	BaseURL     string
}

// RenderResults serializes the items as Torznab RSS. Items without a
// stored CrawlJob link their original URL directly.
func (p *Presenter) RenderResults(pluginName string, items []search.Item) ([]byte, error) {
	rssItems := make([]rssItem, 0, len(items))
	for i := range items {
		rssItems = append(rssItems, p.renderItem(&items[i]))
	}
	return marshalDoc(rssDoc{
		Version: "2.0",
		NSTorz:  nsTorznab,
		Channel: rssChannel{
			Title:       fmt.Sprintf("%s - %s", p.ServerTitle, pluginName),
			Description: "Search results",
			Link:        p.BaseURL,
			Items:       rssItems,
		},
	})
}

// RenderEmpty is the empty feed production errors collapse to.
func (p *Presenter) RenderEmpty(pluginName string) ([]byte, error) {
	return p.RenderResults(pluginName, nil)
}

// RenderProbe is the synthetic single-item feed of the extended
// reachability probe.
func (p *Presenter) RenderProbe(pluginName string) ([]byte, error) {
	now := time.Now().UTC().Format(time.RFC1123Z)
	return marshalDoc(rssDoc{
		Version: "2.0",
		NSTorz:  nsTorznab,
		Channel: rssChannel{
			Title: fmt.Sprintf("%s - %s", p.ServerTitle, pluginName),
			Items: []rssItem{{
				Title:   pluginName + " test",
				GUID:    rssGUID{Value: pluginName + "-probe"},
				Link:    p.BaseURL,
				PubDate: now,
				Attrs:   []torznabAttr{{Name: "category", Value: "8000"}},
			}},
		},
	})
}

func (p *Presenter) renderItem(item *search.Item) rssItem {
	r := &item.Result

	title := r.ReleaseName
	if title == "" {
		title = r.Title
	}

	// The download URL the consumer grabs; falls back to the source link
	// when CrawlJob materialization failed for this result.
	downloadURL := r.DownloadLink
	enclosureType := ""
	if item.JobID != "" {
		downloadURL = p.BaseURL + "/api/v1/download/" + item.JobID
		enclosureType = crawljobMIME
	}

	out := rssItem{
		Title: title,
		// Stable guid: the original download URL, so consumers dedup
		// across repeated searches regardless of job ids.
		GUID:        rssGUID{Value: r.DownloadLink},
		Link:        downloadURL,
		Description: r.Description,
	}
	if r.PublishedDate != nil {
		out.PubDate = r.PublishedDate.UTC().Format(time.RFC1123Z)
	}

	sizeBytes := release.ParseSize(r.Size)
	if enclosureType != "" {
		out.Enclosure = &rssEnclosure{URL: downloadURL, Length: sizeBytes, Type: enclosureType}
	}

	attrs := []torznabAttr{}
	if r.Category != "" {
		attrs = append(attrs, torznabAttr{Name: "category", Value: r.Category})
	}
	if sizeBytes > 0 {
		attrs = append(attrs, torznabAttr{Name: "size", Value: strconv.FormatInt(sizeBytes, 10)})
	}
	if r.Seeders != nil {
		attrs = append(attrs, torznabAttr{Name: "seeders", Value: strconv.Itoa(*r.Seeders)})
	}
	if r.Leechers != nil {
		peers := *r.Leechers
		if r.Seeders != nil {
			peers += *r.Seeders
		}
		attrs = append(attrs, torznabAttr{Name: "peers", Value: strconv.Itoa(peers)})
	}
	if r.Grabs != nil {
		attrs = append(attrs, torznabAttr{Name: "grabs", Value: strconv.Itoa(*r.Grabs)})
	}
	if r.DownloadVolumeFactor != nil {
		attrs = append(attrs, torznabAttr{Name: "downloadvolumefactor", Value: formatFactor(*r.DownloadVolumeFactor)})
	}
	if r.UploadVolumeFactor != nil {
		attrs = append(attrs, torznabAttr{Name: "uploadvolumefactor", Value: formatFactor(*r.UploadVolumeFactor)})
	}
	out.Attrs = attrs
	return out
}

func formatFactor(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func marshalDoc(doc any) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xmlDeclHeader), body...), nil
}

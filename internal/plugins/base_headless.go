package plugins

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/scavengarr/scavengarr/internal/browser"
	"github.com/scavengarr/scavengarr/internal/httpclient"
	"github.com/scavengarr/scavengarr/internal/models"
)

// BaseHeadless is the browser-backed counterpart of BaseHTTP for sites that
// only render behind JavaScript or an anti-bot interstitial. Concurrency is
// bounded by the shared pool; pacing stays per plugin.
type BaseHeadless struct {
	desc   *models.PluginDescriptor
	pool   *browser.Pool
	logger arbor.ILogger

	limiter    *rate.Limiter
	maxResults int
	maxDepth   int

	domainMu     sync.Mutex
	activeDomain string
	failed       map[string]time.Time
}

// NewBaseHeadless builds the base. The pool must be started by the caller.
func NewBaseHeadless(deps Deps, desc *models.PluginDescriptor) (*BaseHeadless, error) {
	if deps.Pool == nil {
		return nil, fmt.Errorf("plugin %s requires the headless browser, which is disabled", desc.Name)
	}

	delay := desc.DelaySeconds
	if delay <= 0 {
		delay = deps.DelaySeconds
	}
	var limiter *rate.Limiter
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Limit(1/delay), 1)
	} else {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	maxResults := desc.MaxResults
	if maxResults <= 0 {
		maxResults = deps.MaxResults
	}
	if maxResults <= 0 {
		maxResults = 1000
	}

	maxDepth := deps.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}

	return &BaseHeadless{
		desc:       desc,
		pool:       deps.Pool,
		logger:     deps.Logger,
		limiter:    limiter,
		maxResults: maxResults,
		maxDepth:   maxDepth,
		failed:     make(map[string]time.Time),
	}, nil
}

// Descriptor returns the plugin's static metadata.
func (b *BaseHeadless) Descriptor() *models.PluginDescriptor { return b.desc }

// MaxResults returns the per-search result ceiling.
func (b *BaseHeadless) MaxResults() int { return b.maxResults }

// MaxDepth returns the stage-walk depth ceiling.
func (b *BaseHeadless) MaxDepth() int { return b.maxDepth }

// Cleanup is a no-op: the browser pool is shared and shut down by the app.
func (b *BaseHeadless) Cleanup(ctx context.Context) error { return nil }

// ActiveDomain returns the working domain, probing the list on first use.
func (b *BaseHeadless) ActiveDomain(ctx context.Context) (string, error) {
	b.domainMu.Lock()
	if b.activeDomain != "" {
		d := b.activeDomain
		b.domainMu.Unlock()
		return d, nil
	}
	b.domainMu.Unlock()

	for _, domain := range b.desc.Domains {
		b.domainMu.Lock()
		_, bad := b.failed[domain]
		b.domainMu.Unlock()
		if bad {
			continue
		}
		if _, err := b.fetchHTML(ctx, "https://"+domain+"/"); err != nil {
			b.domainMu.Lock()
			b.failed[domain] = time.Now()
			b.domainMu.Unlock()
			continue
		}
		b.domainMu.Lock()
		b.activeDomain = domain
		b.domainMu.Unlock()
		return domain, nil
	}
	return "", fmt.Errorf("plugin %s: no reachable domain", b.desc.Name)
}

// BaseURL returns "https://<active domain>".
func (b *BaseHeadless) BaseURL(ctx context.Context) (string, error) {
	domain, err := b.ActiveDomain(ctx)
	if err != nil {
		return "", err
	}
	return "https://" + domain, nil
}

// CheckReachable clears failure marks and re-probes the domain list.
func (b *BaseHeadless) CheckReachable(ctx context.Context) error {
	b.domainMu.Lock()
	b.failed = make(map[string]time.Time)
	b.activeDomain = ""
	b.domainMu.Unlock()

	_, err := b.ActiveDomain(ctx)
	return err
}

// Fetch renders a page in the browser pool and parses the settled DOM.
func (b *BaseHeadless) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	html, err := b.fetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &httpclient.FetchError{Kind: httpclient.KindParse, URL: pageURL, Err: err}
	}
	return doc, nil
}

func (b *BaseHeadless) fetchHTML(ctx context.Context, pageURL string) (string, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", err
	}

	pg, err := b.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer pg.Close()

	if err := b.pool.Navigate(pg, pageURL, nil); err != nil {
		if err == browser.ErrChallenge {
			return "", &httpclient.FetchError{Kind: httpclient.KindChallenge, URL: pageURL, Err: err}
		}
		return "", httpclient.ClassifyError(pageURL, err)
	}
	return b.pool.HTML(pg)
}

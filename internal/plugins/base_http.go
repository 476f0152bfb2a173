package plugins

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/scavengarr/scavengarr/internal/httpclient"
	"github.com/scavengarr/scavengarr/internal/models"
)

// BaseHTTP is the shared machinery of plain-HTTP site adapters: an active
// domain with mirror failover, request pacing, and a bounded detail-page
// fan-out. Adapters embed it and implement Search on top of Fetch.
type BaseHTTP struct {
	desc      *models.PluginDescriptor
	client    *http.Client
	userAgent string
	logger    arbor.ILogger

	limiter    *rate.Limiter
	sem        *semaphore.Weighted
	maxResults int
	maxDepth   int

	domainMu     sync.Mutex
	activeDomain string
	failed       map[string]time.Time
}

// NewBaseHTTP builds the base from the descriptor and the fleet defaults.
func NewBaseHTTP(deps Deps, desc *models.PluginDescriptor) *BaseHTTP {
	delay := desc.DelaySeconds
	if delay <= 0 {
		delay = deps.DelaySeconds
	}
	concurrency := desc.Concurrency
	if concurrency <= 0 {
		concurrency = deps.Concurrency
	}
	if concurrency <= 0 {
		concurrency = 3
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

	return &BaseHTTP{
		desc:       desc,
		client:     deps.Client,
		userAgent:  deps.UserAgent,
		logger:     deps.Logger,
		limiter:    limiter,
		sem:        semaphore.NewWeighted(int64(concurrency)),
		maxResults: maxResults,
		maxDepth:   maxDepth,
		failed:     make(map[string]time.Time),
	}
}

// Descriptor returns the plugin's static metadata.
func (b *BaseHTTP) Descriptor() *models.PluginDescriptor { return b.desc }

// Cleanup is a no-op: the HTTP client is shared process-wide.
func (b *BaseHTTP) Cleanup(ctx context.Context) error { return nil }

// ActiveDomain returns the current working domain, probing the descriptor's
// list in order on first use. Domains marked failed are skipped until a
// recheck clears them.
func (b *BaseHTTP) ActiveDomain(ctx context.Context) (string, error) {
	b.domainMu.Lock()
	if b.activeDomain != "" {
		d := b.activeDomain
		b.domainMu.Unlock()
		return d, nil
	}
	b.domainMu.Unlock()
	return b.probeDomains(ctx)
}

// probeDomains walks the descriptor's domains in order and promotes the
// first reachable one.
func (b *BaseHTTP) probeDomains(ctx context.Context) (string, error) {
	b.domainMu.Lock()
	candidates := make([]string, 0, len(b.desc.Domains))
	for _, d := range b.desc.Domains {
		if _, bad := b.failed[d]; !bad {
			candidates = append(candidates, d)
		}
	}
	b.domainMu.Unlock()

	for _, domain := range candidates {
		if b.probe(ctx, domain) {
			b.domainMu.Lock()
			b.activeDomain = domain
			b.domainMu.Unlock()
			if domain != b.desc.Domains[0] {
				b.logger.Warn().
					Str("plugin", b.desc.Name).
					Str("domain", domain).
					Msg("Primary domain down, using mirror")
			}
			return domain, nil
		}
		b.markFailed(domain)
	}
	return "", fmt.Errorf("plugin %s: no reachable domain", b.desc.Name)
}

func (b *BaseHTTP) probe(ctx context.Context, domain string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, "https://"+domain+"/", nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", b.userAgent)
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	resp.Body.Close()
	return resp.StatusCode < 500
}

func (b *BaseHTTP) markFailed(domain string) {
	b.domainMu.Lock()
	b.failed[domain] = time.Now()
	if b.activeDomain == domain {
		b.activeDomain = ""
	}
	b.domainMu.Unlock()
}

// CheckReachable re-probes the full domain list, clearing stale failure
// marks so a recovered primary wins again.
func (b *BaseHTTP) CheckReachable(ctx context.Context) error {
	b.domainMu.Lock()
	b.failed = make(map[string]time.Time)
	b.activeDomain = ""
	b.domainMu.Unlock()

	_, err := b.probeDomains(ctx)
	return err
}

// BaseURL returns "https://<active domain>" for URL construction.
func (b *BaseHTTP) BaseURL(ctx context.Context) (string, error) {
	domain, err := b.ActiveDomain(ctx)
	if err != nil {
		return "", err
	}
	return "https://" + domain, nil
}

// Fetch GETs a page under pacing and concurrency limits and parses it. A
// transport failure on the active domain triggers one failover retry with
// the host rewritten to the next mirror.
func (b *BaseHTTP) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := b.FetchString(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &httpclient.FetchError{Kind: httpclient.KindParse, URL: pageURL, Err: err}
	}
	return doc, nil
}

// FetchString is Fetch without the HTML parse, for JSON endpoints.
func (b *BaseHTTP) FetchString(ctx context.Context, pageURL string) (string, error) {
	body, err := b.fetchOnce(ctx, pageURL)
	if err == nil {
		return body, nil
	}

	fe, ok := err.(*httpclient.FetchError)
	if !ok || !fe.Retryable() {
		return "", err
	}

	// Active domain looks dead: fail it over and retry on a mirror.
	u, parseErr := url.Parse(pageURL)
	if parseErr != nil {
		return "", err
	}
	b.markFailed(u.Hostname())
	domain, probeErr := b.probeDomains(ctx)
	if probeErr != nil {
		return "", err
	}
	u.Host = domain
	b.logger.Debug().
		Str("plugin", b.desc.Name).
		Str("url", u.String()).
		Msg("Retrying fetch on mirror domain")
	return b.fetchOnce(ctx, u.String())
}

func (b *BaseHTTP) fetchOnce(ctx context.Context, pageURL string) (string, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer b.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", httpclient.ClassifyError(pageURL, err)
	}
	defer resp.Body.Close()

	if fe := httpclient.ClassifyStatus(pageURL, resp.StatusCode); fe != nil {
		return "", fe
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", httpclient.ClassifyError(pageURL, err)
	}
	return string(data), nil
}

// MaxResults returns the per-search result ceiling.
func (b *BaseHTTP) MaxResults() int { return b.maxResults }

// MaxDepth returns the stage-walk depth ceiling.
func (b *BaseHTTP) MaxDepth() int { return b.maxDepth }

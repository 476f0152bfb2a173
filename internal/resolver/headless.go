package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/browser"
	"github.com/scavengarr/scavengarr/internal/httpclient"
	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
)

// HeadlessFallback wraps a resolver whose hoster sometimes sits behind a
// Cloudflare interstitial. Plain HTTP resolution is tried first; on a
// challenge-classified failure the embed page is rendered in the shared
// browser pool and the inner resolver's extraction runs on the rendered HTML.
type HeadlessFallback struct {
	inner  PageResolver
	pool   *browser.Pool
	logger arbor.ILogger
}

// PageResolver is a resolver that can also extract from pre-fetched HTML.
type PageResolver interface {
	Name() string
	SupportedDomains() []string
	Resolve(ctx context.Context, pageURL string) (*models.ResolvedStream, error)
	Extract(pageURL, html string) (*models.ResolvedStream, error)
}

// NewHeadlessFallback wraps inner with a browser-rendered retry.
func NewHeadlessFallback(inner PageResolver, pool *browser.Pool, logger arbor.ILogger) *HeadlessFallback {
	return &HeadlessFallback{inner: inner, pool: pool, logger: logger}
}

func (h *HeadlessFallback) Name() string               { return h.inner.Name() }
func (h *HeadlessFallback) SupportedDomains() []string { return h.inner.SupportedDomains() }

func (h *HeadlessFallback) Resolve(ctx context.Context, pageURL string) (*models.ResolvedStream, error) {
	stream, err := h.inner.Resolve(ctx, pageURL)
	if err == nil {
		return stream, nil
	}
	if !isChallengeErr(err) || h.pool == nil {
		return nil, err
	}

	h.logger.Debug().
		Str("resolver", h.inner.Name()).
		Str("url", pageURL).
		Msg("Retrying challenged hoster page via browser")

	pg, acqErr := h.pool.Acquire(ctx)
	if acqErr != nil {
		return nil, fmt.Errorf("browser fallback unavailable: %w (after %v)", acqErr, err)
	}
	defer pg.Close()

	if navErr := h.pool.Navigate(pg, pageURL, nil); navErr != nil {
		return nil, fmt.Errorf("browser fallback navigation failed: %w", navErr)
	}
	html, htmlErr := h.pool.HTML(pg)
	if htmlErr != nil {
		return nil, htmlErr
	}
	return h.inner.Extract(pageURL, html)
}

// isChallengeErr matches fetch errors classified as anti-bot challenges and
// HTTP 403/503 responses, the statuses Cloudflare serves its interstitial on.
func isChallengeErr(err error) bool {
	if httpclient.KindOf(err) == httpclient.KindChallenge {
		return true
	}
	var fe *httpclient.FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode == 403 || fe.StatusCode == 503
	}
	return false
}

var _ interfaces.Resolver = (*HeadlessFallback)(nil)

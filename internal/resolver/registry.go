// Package resolver turns hoster embed/page URLs into directly playable
// URLs plus the headers downstream clients must replay. Resolvers are
// matched by host suffix in priority order; unmatched URLs fall back to a
// content-type probe and, last, a hoster hint supplied by the plugin.
package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
)

// directMIMEs are content types treated as already-direct media.
var directMIMEs = []string{
	"video/",
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"application/dash+xml",
}

// Registry dispatches URLs to hoster resolvers.
type Registry struct {
	resolvers []interfaces.Resolver
	byName    map[string]interfaces.Resolver
	client    *http.Client
	userAgent string
	logger    arbor.ILogger
}

// NewRegistry creates a registry. client is used for redirect
// canonicalization and the content-type probe.
func NewRegistry(client *http.Client, userAgent string, logger arbor.ILogger) *Registry {
	return &Registry{
		byName:    make(map[string]interfaces.Resolver),
		client:    client,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Register appends a resolver. Registration order breaks suffix-match ties.
func (r *Registry) Register(res interfaces.Resolver) {
	r.resolvers = append(r.resolvers, res)
	r.byName[strings.ToLower(res.Name())] = res
}

// Names returns the registered resolver names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.resolvers))
	for _, res := range r.resolvers {
		names = append(names, res.Name())
	}
	return names
}

// Match returns the first resolver whose supported domain suffix-matches
// the URL host, or nil.
func (r *Registry) Match(rawURL string) interfaces.Resolver {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	for _, res := range r.resolvers {
		for _, domain := range res.SupportedDomains() {
			if hostMatches(host, domain) {
				return res
			}
		}
	}
	return nil
}

func hostMatches(host, domain string) bool {
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// Resolve canonicalizes rawURL through redirects, dispatches to the first
// matching resolver, and falls back to the content-type probe, then to the
// plugin's hoster hint. Every successful resolution carries Referer and
// User-Agent; a result missing either logs a warning.
func (r *Registry) Resolve(ctx context.Context, rawURL, hosterHint string) (*models.ResolvedStream, error) {
	canonical := r.canonicalize(ctx, rawURL)

	if res := r.Match(canonical); res != nil {
		stream, err := res.Resolve(ctx, canonical)
		return r.finish(res.Name(), canonical, stream, err)
	}

	// No suffix match: the probe only runs when the plugin gave no hint.
	if hosterHint == "" {
		if direct := r.probeDirect(ctx, canonical); direct != nil {
			return direct, nil
		}
		return nil, fmt.Errorf("%w: %s", interfaces.ErrNoResolver, canonical)
	}

	res, ok := r.byName[strings.ToLower(hosterHint)]
	if !ok {
		return nil, fmt.Errorf("%w: hint %q unknown for %s", interfaces.ErrNoResolver, hosterHint, canonical)
	}
	stream, err := res.Resolve(ctx, canonical)
	return r.finish(res.Name(), canonical, stream, err)
}

func (r *Registry) finish(name, pageURL string, stream *models.ResolvedStream, err error) (*models.ResolvedStream, error) {
	if err != nil {
		return nil, err
	}
	if stream.HeadersRequired["Referer"] == "" || stream.HeadersRequired["User-Agent"] == "" {
		r.logger.Warn().
			Str("resolver", name).
			Str("url", pageURL).
			Msg("Resolved stream missing replay headers")
	}
	return stream, nil
}

// canonicalize follows redirects via HEAD so rotating alias domains land
// on the hoster's canonical host before dispatch.
func (r *Registry) canonicalize(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return rawURL
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return rawURL
	}
	resp.Body.Close()
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return rawURL
}

// probeDirect classifies a URL as already-direct media by content type.
func (r *Registry) probeDirect(ctx context.Context, rawURL string) *models.ResolvedStream {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil
	}
	resp.Body.Close()

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	for _, mime := range directMIMEs {
		if strings.HasPrefix(ct, mime) {
			return &models.ResolvedStream{
				DirectURL:  rawURL,
				HosterName: "direct",
				HeadersRequired: map[string]string{
					"Referer":    rawURL,
					"User-Agent": r.userAgent,
				},
			}
		}
	}
	return nil
}

// Package httpclient builds the pooled HTTP clients shared by plugins,
// the link validator, and the hoster resolvers. The retry transport
// implements the backoff policy used between scraping stages: transient
// failures (transport errors, 5xx) retry with exponential backoff, 4xx is
// terminal, and Retry-After on 429/503 is honored.
package httpclient

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
)

// Options configures a client built by New.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
	MaxIdleConns int

	// Retry transport settings. MaxAttempts <= 1 disables retries.
	RetryMaxAttempts int
	RetryBaseBackoff time.Duration

	Logger arbor.ILogger
}

// New creates an HTTP client with a bounded connection pool, redirect cap,
// default User-Agent, and optional retry transport.
func New(opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 10
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 100
	}

	transport := &http.Transport{
		MaxIdleConns:        opts.MaxIdleConns,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	var rt http.RoundTripper = &uaTransport{base: transport, userAgent: opts.UserAgent}
	if opts.RetryMaxAttempts > 1 {
		rt = &retryTransport{
			base:        rt,
			maxAttempts: opts.RetryMaxAttempts,
			baseBackoff: opts.RetryBaseBackoff,
			logger:      opts.Logger,
		}
	}

	maxRedirects := opts.MaxRedirects
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: rt,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// uaTransport stamps the default User-Agent on requests that do not carry
// their own.
type uaTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// retryTransport retries transient failures with exponential backoff and
// jitter. Requests with a consumed body are not retried.
type retryTransport struct {
	base        http.RoundTripper
	maxAttempts int
	baseBackoff time.Duration
	logger      arbor.ILogger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	retryable := req.Body == nil || req.Body == http.NoBody

	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		resp, err = t.base.RoundTrip(req)

		if !retryable || !shouldRetry(resp, err) || attempt == t.maxAttempts-1 {
			return resp, err
		}

		backoff := t.backoffFor(resp, attempt)
		if t.logger != nil {
			ev := t.logger.Debug().
				Str("url", req.URL.String()).
				Int("attempt", attempt+1).
				Dur("backoff", backoff)
			if resp != nil {
				ev.Int("status", resp.StatusCode)
			}
			if err != nil {
				ev.Err(err)
			}
			ev.Msg("Retrying request after backoff")
		}
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
	}
	return resp, err
}

// backoffFor prefers the server's Retry-After on 429/503, else exponential
// backoff with +/-25% jitter.
func (t *retryTransport) backoffFor(resp *http.Response, attempt int) time.Duration {
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return d
		}
	}

	base := t.baseBackoff
	if base <= 0 {
		base = 2 * time.Second
	}
	backoff := float64(base)
	for i := 0; i < attempt; i++ {
		backoff *= 2.0
	}
	if max := float64(30 * time.Second); backoff > max {
		backoff = max
	}
	backoff += backoff * 0.25 * (rand.Float64()*2 - 1)
	return time.Duration(backoff)
}

func parseRetryAfter(header string) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		// Transport errors are retryable unless the context is gone.
		return err != context.Canceled && err != context.DeadlineExceeded
	}
	switch resp.StatusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

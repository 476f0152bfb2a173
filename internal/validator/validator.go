// Package validator implements the batched link reachability filter.
// Policy: HEAD first with redirects followed; on timeout, transport error,
// or status >= 400 fall back to a ranged GET, because some hosters
// blanket-403 HEAD requests.
package validator

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/semaphore"

	"github.com/scavengarr/scavengarr/internal/interfaces"
)

const getBodyCap = 4096

// Validator probes URLs with bounded concurrency. One instance is shared
// process-wide.
type Validator struct {
	client  *http.Client
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  arbor.ILogger
}

// New creates a validator. concurrency bounds in-flight probes (default 20).
func New(client *http.Client, concurrency int, timeout time.Duration, logger arbor.ILogger) *Validator {
	if concurrency <= 0 {
		concurrency = 20
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Validator{
		client:  client,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		timeout: timeout,
		logger:  logger,
	}
}

// Validate reports whether a single URL is reachable.
func (v *Validator) Validate(ctx context.Context, url string) bool {
	if err := v.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer v.sem.Release(1)
	return v.probe(ctx, url)
}

// ValidateBatch probes all URLs in parallel and waits for every probe to
// finish; there is no early termination.
func (v *Validator) ValidateBatch(ctx context.Context, urls []string) map[string]bool {
	results := make(map[string]bool, len(urls))
	var mu sync.Mutex
	var wg sync.WaitGroup

	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}

		wg.Add(1)
		go func(url string) {
			defer wg.Done()

			if err := v.sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				results[url] = false
				mu.Unlock()
				return
			}
			defer v.sem.Release(1)

			live := v.probe(ctx, url)
			mu.Lock()
			results[url] = live
			mu.Unlock()
		}(u)
	}
	wg.Wait()
	return results
}

// probe issues HEAD then falls back to GET. 2xx-3xx is live.
func (v *Validator) probe(ctx context.Context, url string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if ok, terminal := v.head(probeCtx, url); terminal {
		return ok
	}
	return v.get(probeCtx, url)
}

// head returns (live, terminal). terminal=false means fall back to GET.
func (v *Validator) head(ctx context.Context, url string) (bool, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, true
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return false, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 {
		return true, true
	}
	// Hosters that reject HEAD get a second chance with GET.
	return false, false
}

func (v *Validator) get(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Debug().Str("url", url).Err(err).Msg("Link probe failed")
		return false
	}
	defer resp.Body.Close()

	// Drain a capped slice of the body so the connection can be reused.
	io.CopyN(io.Discard, resp.Body, getBodyCap)

	return resp.StatusCode < 400
}

var _ interfaces.LinkValidator = (*Validator)(nil)

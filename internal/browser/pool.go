// Package browser owns the single process-wide headless Chrome instance
// shared by headless plugins and the Cloudflare-fallback resolver path.
// Each request gets a fresh browser context (isolated session) and a page;
// a weighted semaphore caps concurrent pages at the pool size.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/semaphore"
)

// ErrChallenge is returned when a challenge page does not clear within the
// configured budget.
var ErrChallenge = errors.New("challenge page not resolved within budget")

// Challenge markers observed on Cloudflare and DDoS-Guard interstitials.
var challengeTitleMarkers = []string{
	"just a moment",
	"attention required",
	"ddos-guard",
	"checking your browser",
}

// Config holds pool settings.
type Config struct {
	PoolSize          int
	UserAgent         string
	Headless          bool
	NoSandbox         bool
	NavigationTimeout time.Duration
	ChallengeTimeout  time.Duration
}

// Pool wraps one shared browser process behind a page-count semaphore.
type Pool struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc

	sem    *semaphore.Weighted
	cfg    Config
	logger arbor.ILogger

	mu          sync.Mutex
	initialized bool
}

// NewPool creates an unstarted pool.
func NewPool(cfg Config, logger arbor.ILogger) *Pool {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 2
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.ChallengeTimeout <= 0 {
		cfg.ChallengeTimeout = 25 * time.Second
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(cfg.PoolSize)),
		cfg:    cfg,
		logger: logger,
	}
}

// Start launches the browser process and verifies it responds.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return fmt.Errorf("browser pool already initialized")
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.cfg.Headless),
		chromedp.Flag("no-sandbox", p.cfg.NoSandbox),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
	)
	if p.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.cfg.UserAgent))
	}

	p.allocCtx, p.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	p.browserCtx, p.browserStop = chromedp.NewContext(p.allocCtx)

	testCtx, cancel := context.WithTimeout(p.browserCtx, p.cfg.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		p.browserStop()
		p.allocCancel()
		return fmt.Errorf("browser failed startup probe: %w", err)
	}

	p.initialized = true
	p.logger.Info().
		Int("pool_size", p.cfg.PoolSize).
		Bool("headless", p.cfg.Headless).
		Msg("Headless browser pool initialized")
	return nil
}

// Page is one acquired browser context. Close must be called on every exit
// path.
type Page struct {
	Ctx     context.Context
	release func()
}

// Close tears down the page context and releases the pool slot.
func (pg *Page) Close() {
	if pg.release != nil {
		pg.release()
		pg.release = nil
	}
}

// Acquire blocks for a pool slot and returns a fresh, isolated browser
// context bounded by the navigation timeout.
func (p *Pool) Acquire(ctx context.Context) (*Page, error) {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return nil, fmt.Errorf("browser pool not initialized")
	}
	browserCtx := p.browserCtx
	p.mu.Unlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	pageCtx, pageCancel := chromedp.NewContext(browserCtx)
	timedCtx, timedCancel := context.WithTimeout(pageCtx, p.cfg.NavigationTimeout)

	// Propagate caller cancellation into the page context.
	stop := context.AfterFunc(ctx, timedCancel)

	var once sync.Once
	release := func() {
		once.Do(func() {
			stop()
			timedCancel()
			pageCancel()
			p.sem.Release(1)
		})
	}
	return &Page{Ctx: timedCtx, release: release}, nil
}

// Navigate loads a URL with the given extra headers and waits for the body
// to be present, then waits out any challenge interstitial.
func (p *Pool) Navigate(pg *Page, url string, headers map[string]string) error {
	actions := []chromedp.Action{network.Enable()}
	if len(headers) > 0 {
		h := make(network.Headers, len(headers))
		for k, v := range headers {
			h[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(h))
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)

	if err := chromedp.Run(pg.Ctx, actions...); err != nil {
		return err
	}
	return p.waitChallenge(pg, url)
}

// waitChallenge polls the page title for known challenge markers until the
// page clears or the challenge budget is exhausted. The poll waits on an
// observable condition (title change), never a fixed sleep per iteration
// beyond the short probe interval.
func (p *Pool) waitChallenge(pg *Page, url string) error {
	deadline := time.Now().Add(p.cfg.ChallengeTimeout)
	for {
		var title string
		if err := chromedp.Run(pg.Ctx, chromedp.Title(&title)); err != nil {
			return err
		}
		if !isChallengeTitle(title) {
			return nil
		}
		if time.Now().After(deadline) {
			p.logger.Warn().Str("url", url).Str("title", title).Msg("Challenge page did not resolve")
			return ErrChallenge
		}
		select {
		case <-pg.Ctx.Done():
			return pg.Ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func isChallengeTitle(title string) bool {
	t := strings.ToLower(title)
	for _, marker := range challengeTitleMarkers {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}

// HTML returns the page's current outer HTML.
func (p *Pool) HTML(pg *Page) (string, error) {
	var html string
	err := chromedp.Run(pg.Ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Shutdown stops the browser process, forcing cleanup after 30s.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.browserStop()
		p.allocCancel()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		p.logger.Warn().Msg("Browser pool shutdown timed out")
	}

	p.initialized = false
	p.logger.Info().Msg("Headless browser pool shut down")
	return nil
}

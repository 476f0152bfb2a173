package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/httpclient"
	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/metrics"
	"github.com/scavengarr/scavengarr/internal/models"
)

// PluginSource hands out plugins by name. Satisfied by plugins.Registry.
type PluginSource interface {
	Get(name string) (interfaces.Plugin, error)
}

// Engine runs one plugin search end to end: breaker gate, timed execution,
// result dedup, link validation with alternate promotion, and metrics.
type Engine struct {
	plugins   PluginSource
	validator interfaces.LinkValidator
	collector *metrics.Collector
	breakers  *metrics.BreakerTable
	logger    arbor.ILogger

	searchTimeout time.Duration
}

// NewEngine wires the engine.
func NewEngine(
	plugins PluginSource,
	validator interfaces.LinkValidator,
	collector *metrics.Collector,
	breakers *metrics.BreakerTable,
	searchTimeout time.Duration,
	logger arbor.ILogger,
) *Engine {
	if searchTimeout <= 0 {
		searchTimeout = 90 * time.Second
	}
	return &Engine{
		plugins:       plugins,
		validator:     validator,
		collector:     collector,
		breakers:      breakers,
		logger:        logger,
		searchTimeout: searchTimeout,
	}
}

// Run executes the named plugin's search for q and returns only results
// whose links were verified live. An open breaker short-circuits without
// touching the site.
func (e *Engine) Run(ctx context.Context, q models.Query) ([]models.SearchResult, error) {
	plugin, err := e.plugins.Get(q.PluginName)
	if err != nil {
		return nil, err
	}

	name := plugin.Descriptor().Name
	if !e.breakers.Allow(name) {
		e.logger.Warn().Str("plugin", name).Msg("Search rejected, circuit open")
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCircuitOpen, name)
	}

	searchCtx, cancel := context.WithTimeout(ctx, e.searchTimeout)
	defer cancel()

	start := time.Now()
	raw, err := plugin.Search(searchCtx, q)
	elapsed := time.Since(start)

	if err != nil {
		e.record(name, elapsed, err)
		e.breakers.ReportFailure(name)
		e.logger.Warn().Err(err).
			Str("plugin", name).
			Str("q", q.Q).
			Str("kind", string(httpclient.KindOf(err))).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("Plugin search failed")
		return nil, err
	}
	e.collector.RecordSuccess(name, elapsed)
	e.breakers.ReportSuccess(name)

	deduped := Dedupe(raw)
	validated := e.validateResults(ctx, deduped)

	e.logger.Info().
		Str("plugin", name).
		Str("q", q.Q).
		Int("raw", len(raw)).
		Int("deduped", len(deduped)).
		Int("live", len(validated)).
		Int64("duration_ms", elapsed.Milliseconds()).
		Msg("Plugin search completed")
	return validated, nil
}

func (e *Engine) record(name string, elapsed time.Duration, err error) {
	switch httpclient.KindOf(err) {
	case httpclient.KindTimeout, httpclient.KindCancelled:
		e.collector.RecordTimeout(name, elapsed)
	default:
		e.collector.RecordError(name, elapsed, err)
	}
}

// Dedupe drops repeated (title, primary link) pairs, keeping first
// occurrence order.
func Dedupe(results []models.SearchResult) []models.SearchResult {
	type key struct{ title, link string }
	seen := make(map[key]struct{}, len(results))
	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		k := key{r.Title, r.DownloadLink}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// validateResults probes every distinct link once, promotes a live
// alternate when a primary is dead, and drops results with no live link.
func (e *Engine) validateResults(ctx context.Context, results []models.SearchResult) []models.SearchResult {
	if e.validator == nil || len(results) == 0 {
		return results
	}

	var all []string
	for i := range results {
		all = append(all, results[i].AllLinks()...)
	}
	liveness := e.validator.ValidateBatch(ctx, all)

	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		live := make([]string, 0, 1+len(r.DownloadLinks))
		for _, link := range r.AllLinks() {
			if liveness[link] {
				live = append(live, link)
			}
		}
		if len(live) == 0 {
			e.logger.Debug().Str("title", r.Title).Msg("Dropping result, no live links")
			continue
		}
		if !liveness[r.DownloadLink] {
			e.logger.Debug().
				Str("title", r.Title).
				Str("from", r.DownloadLink).
				Str("to", live[0]).
				Msg("Promoting live alternate link")
			r.DownloadLink = live[0]
		}
		r.ValidatedLinks = live
		out = append(out, r)
	}
	return out
}

// Package search implements the Torznab search use case: fingerprinted
// cache lookup, scraping engine execution, and CrawlJob materialization.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/cache"
	"github.com/scavengarr/scavengarr/internal/crawljob"
	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
	"github.com/scavengarr/scavengarr/internal/scrape"
)

// ErrInvalidQuery marks request validation failures (client errors).
var ErrInvalidQuery = errors.New("invalid query")

// Item is one search response row: the validated result plus the id of its
// stored CrawlJob. Results whose job failed to build carry an empty JobID
// and still appear in the feed with their direct link.
type Item struct {
	Result models.SearchResult
	JobID  string
}

// Response is the outcome of one search call.
type Response struct {
	Items    []Item
	CacheHit bool
}

// Service is the search use case.
type Service struct {
	engine *scrape.Engine
	cache  *cache.Service
	jobs   interfaces.CrawlJobRepository
	logger arbor.ILogger

	searchTTL   time.Duration
	crawlJobTTL time.Duration
}

// NewService wires the search use case.
func NewService(
	engine *scrape.Engine,
	cacheService *cache.Service,
	jobs interfaces.CrawlJobRepository,
	searchTTL, crawlJobTTL time.Duration,
	logger arbor.ILogger,
) *Service {
	if searchTTL <= 0 {
		searchTTL = 900 * time.Second
	}
	if crawlJobTTL <= 0 {
		crawlJobTTL = time.Hour
	}
	return &Service{
		engine:      engine,
		cache:       cacheService,
		jobs:        jobs,
		logger:      logger,
		searchTTL:   searchTTL,
		crawlJobTTL: crawlJobTTL,
	}
}

// Fingerprint hashes the cache-relevant parts of a query: plugin name,
// normalized q, and category. Offset, limit, and language never enter the
// key; pagination is sliced from the cached list.
func Fingerprint(q models.Query) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%s:%s", q.PluginName, q.NormalizedQ(), q.Category)
	return hex.EncodeToString(h.Sum(nil))
}

// Search runs one Torznab search. On a cache hit the stored item list is
// returned as-is; on a miss the scraping engine runs and each validated
// result is materialized into a stored CrawlJob.
func (s *Service) Search(ctx context.Context, q models.Query) (*Response, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	key := Fingerprint(q)

	var cached []Item
	err := s.cache.GetInto(ctx, cache.NamespaceSearch, key, &cached)
	if err == nil {
		s.logger.Debug().
			Str("plugin", q.PluginName).
			Str("q", q.Q).
			Int("items", len(cached)).
			Msg("Search cache hit")
		return &Response{Items: paginate(cached, q.Offset, q.Limit), CacheHit: true}, nil
	}
	if !errors.Is(err, interfaces.ErrKeyNotFound) {
		// Cache trouble never fails the request; fall through to live scrape.
		s.logger.Warn().Err(err).Str("plugin", q.PluginName).Msg("Search cache read failed")
	}

	results, err := s.engine.Run(ctx, q)
	if err != nil {
		return nil, err
	}

	items := s.materialize(ctx, results)

	if err := s.cache.Put(ctx, cache.NamespaceSearch, key, items, s.searchTTL); err != nil {
		s.logger.Warn().Err(err).Str("plugin", q.PluginName).Msg("Search cache write failed")
	}

	return &Response{Items: paginate(items, q.Offset, q.Limit)}, nil
}

// materialize builds and stores a CrawlJob per result. Individual failures
// are logged and the item keeps an empty JobID.
func (s *Service) materialize(ctx context.Context, results []models.SearchResult) []Item {
	now := time.Now()
	items := make([]Item, 0, len(results))
	for i := range results {
		item := Item{Result: results[i]}

		job, err := crawljob.FromResult(&results[i], s.crawlJobTTL, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("title", results[i].Title).Msg("CrawlJob build failed")
			items = append(items, item)
			continue
		}
		if err := s.jobs.Save(ctx, job); err != nil {
			s.logger.Warn().Err(err).Str("title", results[i].Title).Msg("CrawlJob store failed")
			items = append(items, item)
			continue
		}
		item.JobID = job.JobID
		items = append(items, item)
	}
	return items
}

func validateQuery(q models.Query) error {
	if q.Action != models.ActionSearch {
		return fmt.Errorf("%w: unsupported action %q", ErrInvalidQuery, q.Action)
	}
	if q.PluginName == "" {
		return fmt.Errorf("%w: missing plugin name", ErrInvalidQuery)
	}
	if q.Q == "" && !q.Extended {
		return fmt.Errorf("%w: missing q", ErrInvalidQuery)
	}
	if q.Offset < 0 || q.Limit < 0 {
		return fmt.Errorf("%w: negative offset or limit", ErrInvalidQuery)
	}
	return nil
}

func paginate(items []Item, offset, limit int) []Item {
	if offset >= len(items) {
		return nil
	}
	page := items[offset:]
	if limit > 0 && limit < len(page) {
		page = page[:limit]
	}
	return page
}

package stream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/scavengarr/scavengarr/internal/cache"
	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
	"github.com/scavengarr/scavengarr/internal/release"
	"github.com/scavengarr/scavengarr/internal/resolver"
	"github.com/scavengarr/scavengarr/internal/scrape"
)

// Score weights. Title match dominates; the rest nudge ordering.
const (
	weightTitle    = 4.0
	weightYear     = 1.0
	weightEpisode  = 2.0
	weightQuality  = 1.5
	weightLanguage = 1.0
)

// hosterPreference breaks score ties; earlier is better.
var hosterPreference = []string{"voe", "streamtape", "filemoon", "doodstream", "vidoza", "supervideo"}

// Request identifies what the Stremio client asked to play.
type Request struct {
	MediaType string // "movie" or "series"
	IMDBID    string
	Season    int
	Episode   int
	BaseURL   string // externally visible base for /play indirection
}

// PluginLister enumerates plugin descriptors. Satisfied by plugins.Registry.
type PluginLister interface {
	Descriptors() []*models.PluginDescriptor
}

// playRef is what a deferred /play id points at.
type playRef struct {
	URL        string
	HosterHint string
}

// Service is the stream use case.
type Service struct {
	plugins   PluginLister
	engine    *scrape.Engine
	resolvers *resolver.Registry
	titles    interfaces.TitleResolver
	cache     *cache.Service
	logger    arbor.ILogger

	perPluginTimeout time.Duration
	totalTimeout     time.Duration
	preResolveTopN   int
	language         string
	streamTTL        time.Duration
}

// NewService wires the stream use case.
func NewService(
	plugins PluginLister,
	engine *scrape.Engine,
	resolvers *resolver.Registry,
	titles interfaces.TitleResolver,
	cacheService *cache.Service,
	perPluginTimeout, totalTimeout time.Duration,
	preResolveTopN int,
	language string,
	streamTTL time.Duration,
	logger arbor.ILogger,
) *Service {
	if perPluginTimeout <= 0 {
		perPluginTimeout = 20 * time.Second
	}
	if totalTimeout <= 0 {
		totalTimeout = 45 * time.Second
	}
	if preResolveTopN <= 0 {
		preResolveTopN = 5
	}
	if streamTTL <= 0 {
		streamTTL = 600 * time.Second
	}
	return &Service{
		plugins:          plugins,
		engine:           engine,
		resolvers:        resolvers,
		titles:           titles,
		cache:            cacheService,
		logger:           logger,
		perPluginTimeout: perPluginTimeout,
		totalTimeout:     totalTimeout,
		preResolveTopN:   preResolveTopN,
		language:         language,
		streamTTL:        streamTTL,
	}
}

// Streams resolves the title, fans out across stream plugins, and returns
// the ranked candidates: top N pre-resolved, the rest behind /play ids.
func (s *Service) Streams(ctx context.Context, req Request) ([]models.RankedStream, error) {
	ctx, cancel := context.WithTimeout(ctx, s.totalTimeout)
	defer cancel()

	title, err := s.titles.Resolve(ctx, req.IMDBID, req.MediaType)
	if err != nil {
		return nil, fmt.Errorf("title resolution failed for %s: %w", req.IMDBID, err)
	}

	results := s.fanOut(ctx, title, req)
	ranked := s.rank(results, title, req)

	s.finalize(ctx, ranked, req)

	s.logger.Info().
		Str("imdb_id", req.IMDBID).
		Str("title", title.Title).
		Int("candidates", len(ranked)).
		Msg("Stream lookup completed")
	return ranked, nil
}

// fanOut searches every compatible stream plugin concurrently under a
// per-plugin deadline. Plugins that miss the deadline are logged and
// dropped; the aggregate never fails because one plugin did.
func (s *Service) fanOut(ctx context.Context, title *models.ResolvedTitle, req Request) []scoredResult {
	category := "2000"
	if req.MediaType == "series" {
		category = "5000"
	}

	var candidates []*models.PluginDescriptor
	for _, desc := range s.plugins.Descriptors() {
		if desc.Provides != models.ProvidesStream {
			continue
		}
		// A plugin with a category table that lacks the requested type is
		// skipped; no table means the plugin serves everything.
		if len(desc.Categories) > 0 && desc.SiteTag(category) == "" {
			continue
		}
		candidates = append(candidates, desc)
	}

	var (
		mu      sync.Mutex
		results []scoredResult
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, desc := range candidates {
		g.Go(func() error {
			pluginCtx, cancel := context.WithTimeout(gctx, s.perPluginTimeout)
			defer cancel()

			q := models.Query{
				Action:     models.ActionSearch,
				PluginName: desc.Name,
				Q:          title.Title,
				Category:   category,
				Season:     req.Season,
				Episode:    req.Episode,
			}
			rs, err := s.engine.Run(pluginCtx, q)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					s.logger.Warn().Str("plugin", desc.Name).Msg("Stream fan-out plugin timed out")
				}
				return nil
			}
			mu.Lock()
			for _, r := range rs {
				results = append(results, scoredResult{result: r, plugin: desc})
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

type scoredResult struct {
	result models.SearchResult
	plugin *models.PluginDescriptor
	score  float64
	order  int
}

// rank converts, scores, and stably sorts the fan-out output.
func (s *Service) rank(results []scoredResult, title *models.ResolvedTitle, req Request) []models.RankedStream {
	nameCandidates := append([]string{title.Title}, title.Aliases...)
	if title.AltTitle != "" {
		nameCandidates = append(nameCandidates, title.AltTitle)
	}

	for i := range results {
		results[i].order = i
		results[i].score = s.score(&results[i], nameCandidates, title.Year, req)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		hi := hosterRank(hosterOf(&results[i].result))
		hj := hosterRank(hosterOf(&results[j].result))
		if hi != hj {
			return hi < hj
		}
		return results[i].order < results[j].order
	})

	ranked := make([]models.RankedStream, 0, len(results))
	for _, sr := range results {
		releaseName := sr.result.ReleaseName
		if releaseName == "" {
			releaseName = sr.result.Title
		}
		info := release.Parse(releaseName)

		language := info.Language
		if language == "" {
			language = sr.plugin.DefaultLanguage
		}

		ranked = append(ranked, models.RankedStream{
			Title:       sr.result.Title,
			ReleaseName: releaseName,
			Quality:     info.Quality,
			Language:    language,
			SizeBytes:   release.ParseSize(sr.result.Size),
			Hoster:      hosterOf(&sr.result),
			Score:       sr.score,
			SourceURL:   sr.result.DownloadLink,
			PluginName:  sr.plugin.Name,
		})
	}
	return ranked
}

// score implements the weighted sum over title match, year, episode
// exactness, quality rank, and language preference.
func (s *Service) score(sr *scoredResult, nameCandidates []string, year int, req Request) float64 {
	releaseName := sr.result.ReleaseName
	if releaseName == "" {
		releaseName = sr.result.Title
	}
	info := release.Parse(releaseName)

	total := weightTitle * release.TitleScore(info.Title, nameCandidates...)

	if year > 0 && info.Year == year {
		total += weightYear
	}
	if req.Season > 0 && info.Season == req.Season {
		if req.Episode > 0 && info.Episode == req.Episode {
			total += weightEpisode
		} else if req.Episode == 0 {
			total += weightEpisode / 2
		}
	}

	total += weightQuality * float64(release.QualityRank(info.Quality)) / 5.0

	language := info.Language
	if language == "" {
		language = sr.plugin.DefaultLanguage
	}
	if s.language != "" && (language == s.language || language == "multi") {
		total += weightLanguage
	}
	return total
}

// finalize pre-resolves the top N streams and parks the rest behind /play
// ids. A pre-resolve failure degrades that entry to the deferred path.
func (s *Service) finalize(ctx context.Context, ranked []models.RankedStream, req Request) {
	for i := range ranked {
		if i < s.preResolveTopN {
			resolved, err := s.resolveCached(ctx, ranked[i].SourceURL, hintFor(&ranked[i]))
			if err == nil {
				ranked[i].DirectURL = resolved.DirectURL
				ranked[i].RequestHeaders = resolved.HeadersRequired
				continue
			}
			s.logger.Debug().Err(err).
				Str("url", ranked[i].SourceURL).
				Msg("Pre-resolve failed, deferring to play redirect")
		}

		id, err := s.storePlayRef(ctx, ranked[i].SourceURL, hintFor(&ranked[i]))
		if err != nil {
			s.logger.Warn().Err(err).Str("url", ranked[i].SourceURL).Msg("Storing play reference failed")
			continue
		}
		ranked[i].PlayURL = strings.TrimRight(req.BaseURL, "/") + "/api/v1/stremio/play/" + id
	}
}

// Play resolves a deferred stream id on click.
func (s *Service) Play(ctx context.Context, streamID string) (*models.ResolvedStream, error) {
	var ref playRef
	if err := s.cache.GetInto(ctx, cache.NamespaceStream, "play:"+streamID, &ref); err != nil {
		return nil, err
	}
	return s.resolveCached(ctx, ref.URL, ref.HosterHint)
}

// resolveCached memoizes resolver output under stream:<hoster>:<hash>.
func (s *Service) resolveCached(ctx context.Context, sourceURL, hosterHint string) (*models.ResolvedStream, error) {
	key := streamCacheKey(sourceURL, hosterHint)

	var cached models.ResolvedStream
	if err := s.cache.GetInto(ctx, cache.NamespaceStream, key, &cached); err == nil {
		return &cached, nil
	}

	resolved, err := s.resolvers.Resolve(ctx, sourceURL, hosterHint)
	if err != nil {
		return nil, err
	}

	ttl := s.streamTTL
	if resolved.ExpiresAt != nil {
		if until := time.Until(*resolved.ExpiresAt); until > 0 && until < ttl {
			ttl = until
		}
	}
	if err := s.cache.Put(ctx, cache.NamespaceStream, key, resolved, ttl); err != nil {
		s.logger.Warn().Err(err).Str("url", sourceURL).Msg("Stream cache write failed")
	}
	return resolved, nil
}

func (s *Service) storePlayRef(ctx context.Context, sourceURL, hosterHint string) (string, error) {
	id := uuid.NewString()
	ref := playRef{URL: sourceURL, HosterHint: hosterHint}
	if err := s.cache.Put(ctx, cache.NamespaceStream, "play:"+id, ref, s.streamTTL); err != nil {
		return "", err
	}
	return id, nil
}

func streamCacheKey(sourceURL, hosterHint string) string {
	hoster := hosterHint
	if hoster == "" {
		hoster = "any"
	}
	sum := sha256.Sum256([]byte(sourceURL))
	return hoster + ":" + hex.EncodeToString(sum[:])
}

func hintFor(rs *models.RankedStream) string { return rs.Hoster }

// hosterOf infers the hoster from the primary link's alternates, falling
// back to the URL's second-level domain.
func hosterOf(r *models.SearchResult) string {
	for _, l := range r.DownloadLinks {
		if l.URL == r.DownloadLink && l.HosterHint != "" {
			return l.HosterHint
		}
	}
	u, err := url.Parse(r.DownloadLink)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.ToLower(u.Hostname()), ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

func hosterRank(hoster string) int {
	for i, h := range hosterPreference {
		if h == hoster {
			return i
		}
	}
	return len(hosterPreference)
}

// Package app wires every component in startup order and tears them down
// in reverse on shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/scavengarr/scavengarr/internal/browser"
	"github.com/scavengarr/scavengarr/internal/cache"
	"github.com/scavengarr/scavengarr/internal/common"
	"github.com/scavengarr/scavengarr/internal/crawljob"
	"github.com/scavengarr/scavengarr/internal/handlers"
	"github.com/scavengarr/scavengarr/internal/httpclient"
	"github.com/scavengarr/scavengarr/internal/metrics"
	"github.com/scavengarr/scavengarr/internal/plugins"
	_ "github.com/scavengarr/scavengarr/internal/plugins/sites" // register plugin factories
	"github.com/scavengarr/scavengarr/internal/resolver"
	"github.com/scavengarr/scavengarr/internal/scrape"
	"github.com/scavengarr/scavengarr/internal/search"
	storage "github.com/scavengarr/scavengarr/internal/storage/badger"
	"github.com/scavengarr/scavengarr/internal/stream"
	"github.com/scavengarr/scavengarr/internal/torznab"
	"github.com/scavengarr/scavengarr/internal/validator"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	ctx       context.Context
	cancelCtx context.CancelFunc

	// Shared infrastructure.
	HTTPClient  *http.Client
	BrowserPool *browser.Pool
	DB          *storage.DB
	Cache       *cache.Service
	Scheduler   *cron.Cron

	// Domain services.
	PluginRegistry   *plugins.Registry
	ResolverRegistry *resolver.Registry
	Validator        *validator.Validator
	Metrics          *metrics.Collector
	Breakers         *metrics.BreakerTable
	Engine           *scrape.Engine
	CrawlJobs        *crawljob.Repository
	SearchService    *search.Service
	StreamService    *stream.Service

	// HTTP handlers.
	TorznabHandler  *handlers.TorznabHandler
	DownloadHandler *handlers.DownloadHandler
	StremioHandler  *handlers.StremioHandler
	StatusHandler   *handlers.StatusHandler
}

// New constructs the application in dependency order. A failure at any
// stage tears down what was already started.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	cfg := a.Config

	a.HTTPClient = httpclient.New(httpclient.Options{
		Timeout:          cfg.HTTP.Timeout,
		UserAgent:        cfg.HTTP.UserAgent,
		MaxRedirects:     cfg.HTTP.MaxRedirects,
		MaxIdleConns:     cfg.HTTP.MaxIdleConns,
		RetryMaxAttempts: cfg.HTTP.RetryMaxAttempts,
		RetryBaseBackoff: cfg.HTTP.RetryBaseBackoff,
		Logger:           a.Logger,
	})

	if cfg.Browser.Enabled {
		a.BrowserPool = browser.NewPool(browser.Config{
			PoolSize:          cfg.Browser.PoolSize,
			UserAgent:         cfg.HTTP.UserAgent,
			Headless:          cfg.Browser.Headless,
			NoSandbox:         cfg.Browser.NoSandbox,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			ChallengeTimeout:  cfg.Browser.ChallengeTimeout,
		}, a.Logger)
		if err := a.BrowserPool.Start(a.ctx); err != nil {
			// Headless plugins degrade to load errors; HTTP plugins and
			// resolvers still work.
			a.Logger.Warn().Err(err).Msg("Browser pool failed to start, headless plugins disabled")
			a.BrowserPool = nil
		}
	}

	db, err := storage.Open(cfg.Cache.Dir, a.Logger)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	a.DB = db

	cacheStore := storage.NewCacheStore(db, cfg.Cache.Gate, a.Logger)
	a.Cache = cache.NewService(cacheStore, a.Logger)

	a.Validator = validator.New(a.HTTPClient, cfg.Validator.Concurrency, cfg.Validator.Timeout, a.Logger)

	a.Metrics = metrics.NewCollector()
	a.Breakers = metrics.NewBreakerTable(metrics.DefaultBreakerConfig())

	a.PluginRegistry = plugins.NewRegistry(plugins.Deps{
		Client:       a.HTTPClient,
		Pool:         a.BrowserPool,
		UserAgent:    cfg.HTTP.UserAgent,
		Logger:       a.Logger,
		MaxResults:   cfg.Plugins.MaxResults,
		Concurrency:  cfg.Plugins.Concurrency,
		DelaySeconds: cfg.Plugins.DelaySeconds,
		MaxDepth:     cfg.Plugins.MaxDepth,
	}, a.Logger)
	if err := a.PluginRegistry.Discover(cfg.Plugins.Dir); err != nil {
		return fmt.Errorf("discovering plugins: %w", err)
	}

	a.ResolverRegistry = resolver.NewRegistry(a.HTTPClient, cfg.HTTP.UserAgent, a.Logger)
	resolver.RegisterDefaults(a.ResolverRegistry, a.HTTPClient, cfg.HTTP.UserAgent, a.BrowserPool, a.Logger)

	a.Engine = scrape.NewEngine(
		a.PluginRegistry,
		a.Validator,
		a.Metrics,
		a.Breakers,
		cfg.Plugins.SearchTimeout,
		a.Logger,
	)

	a.CrawlJobs = crawljob.NewRepository(a.DB, a.Logger)

	a.SearchService = search.NewService(
		a.Engine,
		a.Cache,
		a.CrawlJobs,
		cfg.Cache.SearchTTL,
		cfg.Cache.CrawlJobTTL,
		a.Logger,
	)

	titles := stream.NewTitleChain(
		a.Logger,
		stream.NewCinemeta(a.HTTPClient, cfg.HTTP.UserAgent, "", a.Logger),
		stream.NewSuggest(a.HTTPClient, cfg.HTTP.UserAgent, a.Logger),
	)
	a.StreamService = stream.NewService(
		a.PluginRegistry,
		a.Engine,
		a.ResolverRegistry,
		titles,
		a.Cache,
		cfg.Stream.PerPluginTimeout,
		cfg.Stream.TotalTimeout,
		cfg.Stream.PreResolveTopN,
		cfg.Stream.Language,
		cfg.Cache.StreamTTL,
		a.Logger,
	)

	baseURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	presenter := &torznab.Presenter{ServerTitle: "Scavengarr", BaseURL: baseURL}

	a.TorznabHandler = handlers.NewTorznabHandler(
		a.SearchService,
		a.PluginRegistry,
		presenter,
		common.Version,
		cfg.Plugins.MaxResults,
		cfg.IsProduction(),
		a.Logger,
	)
	a.DownloadHandler = handlers.NewDownloadHandler(a.CrawlJobs, a.Logger)
	a.StremioHandler = handlers.NewStremioHandler(a.StreamService, common.Version, baseURL, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.PluginRegistry, a.Metrics, a.Breakers, common.Version, a.Logger)

	a.startScheduler()
	return nil
}

// startScheduler wires the recurring jobs: failed-domain re-probe and
// expired crawljob sweep.
func (a *App) startScheduler() {
	a.Scheduler = cron.New(cron.WithSeconds())

	spec := a.Config.Plugins.DomainRecheck
	if spec != "" {
		_, err := a.Scheduler.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(a.ctx, 2*time.Minute)
			defer cancel()
			a.PluginRegistry.RecheckDomains(ctx)
		})
		if err != nil {
			a.Logger.Warn().Err(err).Str("spec", spec).Msg("Invalid domain recheck schedule")
		}
	}

	_, err := a.Scheduler.AddFunc("0 */15 * * * *", func() {
		ctx, cancel := context.WithTimeout(a.ctx, time.Minute)
		defer cancel()
		if err := a.CrawlJobs.Sweep(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("CrawlJob sweep failed")
		}
	})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to schedule crawljob sweep")
	}

	a.Scheduler.Start()
}

// Close tears components down in reverse construction order.
func (a *App) Close() {
	if a.Scheduler != nil {
		cronCtx := a.Scheduler.Stop()
		select {
		case <-cronCtx.Done():
		case <-time.After(5 * time.Second):
			a.Logger.Warn().Msg("Scheduler jobs did not finish in time")
		}
	}

	if a.PluginRegistry != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		a.PluginRegistry.Cleanup(cleanupCtx)
		cancel()
	}

	if a.BrowserPool != nil {
		if err := a.BrowserPool.Shutdown(); err != nil {
			a.Logger.Warn().Err(err).Msg("Browser pool shutdown failed")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
		}
	}

	a.cancelCtx()
	a.Logger.Info().Msg("Application closed")
}

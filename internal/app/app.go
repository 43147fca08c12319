// Package app wires configuration into the long-lived services: the document
// store, the Steam client, the analyzers, the background crawler and the HTTP
// surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/steam-sentiment/internal/analyzer"
	"github.com/JakeFAU/steam-sentiment/internal/api"
	"github.com/JakeFAU/steam-sentiment/internal/clock"
	"github.com/JakeFAU/steam-sentiment/internal/config"
	"github.com/JakeFAU/steam-sentiment/internal/crawler"
	collyfetcher "github.com/JakeFAU/steam-sentiment/internal/fetcher/colly"
	"github.com/JakeFAU/steam-sentiment/internal/id/uuid"
	"github.com/JakeFAU/steam-sentiment/internal/metrics"
	"github.com/JakeFAU/steam-sentiment/internal/policy/ratelimit"
	pspublisher "github.com/JakeFAU/steam-sentiment/internal/publisher/pubsub"
	"github.com/JakeFAU/steam-sentiment/internal/reviews"
	"github.com/JakeFAU/steam-sentiment/internal/sentiment"
	"github.com/JakeFAU/steam-sentiment/internal/steam"
	"github.com/JakeFAU/steam-sentiment/internal/storage"
	"github.com/JakeFAU/steam-sentiment/internal/storage/gcs"
	"github.com/JakeFAU/steam-sentiment/internal/storage/local"
	"github.com/JakeFAU/steam-sentiment/internal/storage/memory"
	"github.com/JakeFAU/steam-sentiment/internal/storage/postgres"
	"github.com/JakeFAU/steam-sentiment/internal/storage/sqlite"
	"github.com/JakeFAU/steam-sentiment/internal/store"
	"github.com/JakeFAU/steam-sentiment/internal/trending"
)

// Names of the trending discovery sources, reported in dataSources.
const (
	SourceTopPlayed   = "steamspy-top100in2weeks"
	SourceNewReleases = "store-new-releases"
	SourceComingSoon  = "store-coming-soon"
)

// App holds the shared services for the process.
type App struct {
	logger       *zap.Logger
	orchestrator *crawler.Orchestrator
	server       *api.Server
	closers      []func() error
}

// New opens the configured document store and publisher, then wires the
// rest of the service on top of them. Close releases what New opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	docs, closeDocs, err := openDocumentStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if closeDocs != nil {
		closers = append(closers, closeDocs)
	}

	var publisher crawler.Publisher
	if cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		p := pspublisher.New(client, cfg.PubSub.TopicName)
		publisher = p
		closers = append(closers, func() error {
			p.Stop()
			return client.Close()
		})
		logger.Info("publishing crawl events", zap.String("topic", cfg.PubSub.TopicName))
	}

	a, err := NewWithStore(ctx, cfg, docs, publisher, logger)
	if err != nil {
		closeAll()
		return nil, err
	}
	a.closers = closers
	return a, nil
}

// NewWithStore wires the service over an already opened document store.
// publisher may be nil.
func NewWithStore(
	ctx context.Context,
	cfg config.Config,
	docs storage.DocumentStore,
	publisher crawler.Publisher,
	logger *zap.Logger,
) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	clk := clock.New()
	ids := uuid.New()

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Steam.RequestsPerSecond,
		DefaultBurst: cfg.Steam.Burst,
		Hosts: map[string]ratelimit.HostLimit{
			ratelimit.Host(cfg.Steam.SteamSpyBaseURL): {RPS: cfg.Steam.SteamSpyRequestsPerSecond, Burst: 1},
		},
	})
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Steam.UserAgent,
		Timeout:   cfg.SteamTimeout(),
	}, limiter)
	client := steam.New(steam.Config{
		StoreBaseURL:    cfg.Steam.StoreBaseURL,
		ReviewsBaseURL:  cfg.Steam.ReviewsBaseURL,
		SteamSpyBaseURL: cfg.Steam.SteamSpyBaseURL,
		Language:        cfg.Steam.Language,
		CountryCode:     cfg.Steam.CountryCode,
	}, fetcher, logger)

	collector := reviews.New(client, reviews.Config{
		PageSize:   cfg.Reviews.PageSize,
		MaxPages:   cfg.Reviews.MaxPages,
		MaxReviews: cfg.Reviews.MaxReviews,
	}, logger)
	svc := analyzer.New(client, collector, sentiment.NewDefault(), logger)

	db := store.NewReviewDB(docs, clk, logger)
	orchestrator := crawler.NewOrchestrator(client, svc, db, publisher, clk, ids, crawler.OrchestratorConfig{
		MaxGames:          cfg.Crawler.MaxGames,
		MaxReviewsPerGame: cfg.Crawler.MaxReviewsPerGame,
		Delay:             cfg.CrawlDelay(),
	}, logger)
	status, err := db.CrawlerStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore crawler status: %w", err)
	}
	orchestrator.Restore(status)

	aggregator := trending.NewAggregator(logger, trendingSources(client, cfg.Trending.MaxCandidates)...)
	enricher := trending.NewEnricher(client, client, cfg.Trending.DetailConcurrency, logger)
	manager := trending.NewManager(
		trending.Config{ListSize: cfg.Trending.ListSize},
		docs, aggregator, enricher, clk, logger,
	)

	server := api.NewServer(api.Dependencies{
		Sentiment: svc,
		Crawler:   orchestrator,
		Games:     db,
		Trending:  manager,
		IDs:       ids,
		Ready: func(ctx context.Context) error {
			_, err := db.Load(ctx)
			return err
		},
	}, api.Options{
		CORSOrigins:    cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout(),
	}, logger)

	return &App{
		logger:       logger,
		orchestrator: orchestrator,
		server:       server,
	}, nil
}

// trendingSources lists the discovery feeds, each capped to an even share of
// maxCandidates.
func trendingSources(client *steam.Client, maxCandidates int) []trending.Source {
	perSource := 0
	if maxCandidates > 0 {
		perSource = (maxCandidates + 2) / 3
	}
	return []trending.Source{
		{
			Name:  SourceTopPlayed,
			Flags: []crawler.SourceFlag{crawler.FlagTopPlayed},
			Limit: perSource,
			Fetch: client.TopPlayed,
		},
		{
			Name:  SourceNewReleases,
			Flags: []crawler.SourceFlag{crawler.FlagNewReleases},
			Limit: perSource,
			Fetch: func(ctx context.Context) ([]crawler.GameCandidate, error) {
				return client.FeaturedCandidates(ctx, steam.CategoryNewReleases, steam.CategoryTopSellers)
			},
		},
		{
			Name:  SourceComingSoon,
			Flags: []crawler.SourceFlag{crawler.FlagUpcomingList, crawler.FlagComingSoon},
			Limit: perSource,
			Fetch: func(ctx context.Context) ([]crawler.GameCandidate, error) {
				return client.FeaturedCandidates(ctx, steam.CategoryComingSoon)
			},
		},
	}
}

// openDocumentStore returns the backend named by cfg.Storage.Backend plus an
// optional close func.
func openDocumentStore(
	ctx context.Context,
	cfg config.Config,
	logger *zap.Logger,
) (storage.DocumentStore, func() error, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		logger.Info("using in-memory document store; data is lost on exit")
		return memory.NewDocumentStore(), nil, nil
	case config.BackendLocal, "":
		logger.Info("using local document store", zap.String("dir", cfg.Storage.LocalDir))
		docs, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, nil, fmt.Errorf("open local store: %w", err)
		}
		return docs, nil, nil
	case config.BackendSQLite:
		logger.Info("using sqlite document store", zap.String("path", cfg.Storage.SQLitePath))
		docs, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.Storage.SQLitePath, Table: cfg.DB.Table})
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return docs, docs.Close, nil
	case config.BackendPostgres:
		logger.Info("using postgres document store", zap.String("table", cfg.DB.Table))
		docs, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: int32(cfg.DB.MaxConns), //nolint:gosec // bounded by config validation
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return docs, func() error {
			docs.Close()
			return nil
		}, nil
	case config.BackendGCS:
		logger.Info("using gcs document store", zap.String("bucket", cfg.Storage.GCSBucket))
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create gcs client: %w", err)
		}
		docs, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.GCSPrefix})
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("open gcs store: %w", err)
		}
		return docs, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Crawler returns the background crawl orchestrator.
func (a *App) Crawler() *crawler.Orchestrator {
	return a.orchestrator
}

// Close releases the store and publisher in reverse order of opening.
func (a *App) Close() error {
	a.logger.Info("shutting down application services")
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

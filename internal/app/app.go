// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/comics-crawler/internal/clock/system"
	"github.com/JakeFAU/comics-crawler/internal/config"
	"github.com/JakeFAU/comics-crawler/internal/crawler"
	"github.com/JakeFAU/comics-crawler/internal/crawlstate"
	"github.com/JakeFAU/comics-crawler/internal/database"
	"github.com/JakeFAU/comics-crawler/internal/dispatcher"
	"github.com/JakeFAU/comics-crawler/internal/fetcher"
	collyfetcher "github.com/JakeFAU/comics-crawler/internal/fetcher/colly"
	restyfetcher "github.com/JakeFAU/comics-crawler/internal/fetcher/resty"
	"github.com/JakeFAU/comics-crawler/internal/hash/sha256"
	"github.com/JakeFAU/comics-crawler/internal/id/uuid"
	"github.com/JakeFAU/comics-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/comics-crawler/internal/publisher"
	pubsubpublisher "github.com/JakeFAU/comics-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/comics-crawler/internal/storage"
	"github.com/JakeFAU/comics-crawler/internal/storage/gcs"
	"github.com/JakeFAU/comics-crawler/internal/storage/local"
	"github.com/JakeFAU/comics-crawler/internal/storage/memory"
	"github.com/JakeFAU/comics-crawler/internal/storage/postgres"
	redisstore "github.com/JakeFAU/comics-crawler/internal/storage/redis"
	"github.com/JakeFAU/comics-crawler/internal/store"
)

// App holds all the shared, long-lived services for the application.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	headers      http.Header
	states       store.StateStore
	comics       store.ComicRepository
	tracker      *crawlstate.Tracker
	dispatcher   *dispatcher.Dispatcher
	orchestrator *crawler.Orchestrator
	publisher    publisher.Publisher
	closers      []func() error
}

// Option overrides a dependency New would otherwise build from config.
type Option func(*options)

type options struct {
	sitemapFetcher fetcher.Fetcher
	pageFetcher    fetcher.Fetcher
	publisher      publisher.Publisher
}

// WithFetchers replaces the resty sitemap fetcher and the colly page fetcher.
func WithFetchers(sitemaps, pages fetcher.Fetcher) Option {
	return func(o *options) {
		o.sitemapFetcher = sitemaps
		o.pageFetcher = pages
	}
}

// WithPublisher replaces the Pub/Sub publisher.
func WithPublisher(p publisher.Publisher) Option {
	return func(o *options) {
		o.publisher = p
	}
}

// New builds every service named by cfg. It fails fast when a backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		headers: fetcher.CookieHeader(cfg.Crawler.Cookie),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	clock := system.New()
	if err := a.initStores(ctx); err != nil {
		return nil, err
	}
	a.tracker = crawlstate.NewTracker(a.states, uuid.New(), clock, logger.Named("crawlstate"))
	a.dispatcher = dispatcher.Default(clock)

	archive, err := a.initArchive(ctx)
	if err != nil {
		return nil, err
	}

	a.publisher = o.publisher
	if a.publisher == nil && cfg.PubSub.TopicName != "" {
		if a.publisher, err = a.initPubSub(ctx); err != nil {
			return nil, err
		}
	}

	sitemaps, pages := o.sitemapFetcher, o.pageFetcher
	if sitemaps == nil {
		sitemaps = restyfetcher.New(restyfetcher.Config{
			UserAgent:      cfg.Crawler.UserAgent,
			Timeout:        cfg.HTTP.Timeout(),
			MaxRetries:     cfg.HTTP.MaxRetries,
			BackoffInitial: cfg.HTTP.BackoffInitial(),
			BackoffMax:     cfg.HTTP.BackoffMax(),
			Logger:         logger.Named("sitemap"),
		})
	}
	if pages == nil {
		pages = collyfetcher.New(collyfetcher.Config{
			UserAgent:     cfg.Crawler.UserAgent,
			RespectRobots: cfg.Crawler.RespectRobots,
			Timeout:       cfg.RequestTimeout(),
		})
	}

	deps := crawler.Dependencies{
		SitemapFetcher: sitemaps,
		PageFetcher:    pages,
		Scraper:        a.dispatcher,
		Tracker:        a.tracker,
		Limiter:        ratelimit.New(ratelimit.Config{RPS: cfg.Crawler.RateLimitRPS, Burst: cfg.Crawler.RateLimitBurst}),
		Clock:          clock,
	}
	if archive != nil {
		deps.Archive = archive
	}
	a.orchestrator, err = crawler.New(deps, crawler.Config{Concurrency: cfg.Crawler.Concurrency}, logger.Named("crawler"))
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	logger.Info("application services initialized",
		zap.String("state_driver", cfg.State.Driver),
		zap.String("records_driver", cfg.Records.Driver),
		zap.String("archive_driver", cfg.Archive.Driver),
		zap.Bool("publishing", a.publisher != nil),
	)
	return a, nil
}

func (a *App) initStores(ctx context.Context) error {
	var pool *pgxpool.Pool
	if a.cfg.State.Driver == config.DriverPostgres || a.cfg.Records.Driver == config.DriverPostgres {
		var err error
		pool, err = database.Connect(ctx, database.Config{DSN: a.cfg.DB.DSN, MaxConns: a.cfg.DB.MaxConns})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		if a.cfg.DB.AutoMigrate {
			if err := database.EnsureSchema(ctx, pool); err != nil {
				return err
			}
		}
	}

	switch a.cfg.State.Driver {
	case config.DriverPostgres:
		states, err := postgres.NewStateStore(pool)
		if err != nil {
			return fmt.Errorf("init postgres state store: %w", err)
		}
		a.states = states
	case config.DriverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		a.states = redisstore.NewStateStore(client, a.cfg.Redis.Prefix)
	case config.DriverMemory, "":
		a.states = memory.NewStateStore()
	default:
		return fmt.Errorf("unknown state driver: %s", a.cfg.State.Driver)
	}

	switch a.cfg.Records.Driver {
	case config.DriverPostgres:
		comics, err := postgres.NewComicStore(pool)
		if err != nil {
			return fmt.Errorf("init postgres comic store: %w", err)
		}
		a.comics = comics
	case config.DriverMemory, "":
		a.comics = memory.NewComicStore()
	default:
		return fmt.Errorf("unknown records driver: %s", a.cfg.Records.Driver)
	}
	return nil
}

func (a *App) initArchive(ctx context.Context) (*storage.Archive, error) {
	var blobs storage.BlobStore
	switch a.cfg.Archive.Driver {
	case config.DriverNone, "":
		return nil, nil
	case config.DriverLocal:
		dir, err := local.New(local.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		blobs = dir
	case config.DriverGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		bucket, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		a.closers = append(a.closers, bucket.Close)
		if err := bucket.CheckBucket(ctx); err != nil {
			return nil, err
		}
		blobs = bucket
	default:
		return nil, fmt.Errorf("unknown archive driver: %s", a.cfg.Archive.Driver)
	}
	return storage.NewArchive(blobs, sha256.New(), a.cfg.Archive.Prefix), nil
}

func (a *App) initPubSub(ctx context.Context) (publisher.Publisher, error) {
	client, err := gpubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	pub := pubsubpublisher.New(client.Topic(a.cfg.PubSub.TopicName))
	a.closers = append(a.closers, func() error {
		pub.Stop()
		return nil
	})
	a.logger.Info("publishing records to pubsub", zap.String("topic", a.cfg.PubSub.TopicName))
	return pub, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Headers returns the headers sent with every crawl request.
func (a *App) Headers() http.Header { return a.headers.Clone() }

// States exposes the crawl-state store.
func (a *App) States() store.StateStore { return a.states }

// Comics exposes the comic record repository.
func (a *App) Comics() store.ComicRepository { return a.comics }

// Tracker exposes the crawl-state tracker.
func (a *App) Tracker() *crawlstate.Tracker { return a.tracker }

// Orchestrator exposes the sitemap crawler.
func (a *App) Orchestrator() *crawler.Orchestrator { return a.orchestrator }

// Publisher returns the record publisher, or nil when publishing is off.
func (a *App) Publisher() publisher.Publisher { return a.publisher }

// Targets returns the configured crawl targets, or only the one named site when site is set.
func (a *App) Targets(site string) ([]crawler.Target, error) {
	var out []crawler.Target
	for _, t := range a.cfg.Targets {
		if site != "" && t.Site != site {
			continue
		}
		out = append(out, crawler.Target{
			Site:          t.Site,
			IndexURL:      t.IndexURL,
			ProductMarker: t.ProductMarker,
			Headers:       a.Headers(),
		})
	}
	if len(out) == 0 {
		if site != "" {
			return nil, fmt.Errorf("no target configured for site %q", site)
		}
		return nil, errors.New("no targets configured")
	}
	return out, nil
}

// Sink returns the record sink for a crawl of site: the repository, the publisher when
// configured, and any extra sinks.
func (a *App) Sink(site string, extra ...crawler.Sink) crawler.Sink {
	sinks := crawler.MultiSink{crawler.NewRepositorySink(a.comics)}
	if a.publisher != nil {
		sinks = append(sinks, crawler.NewPublisherSink(a.publisher, site))
	}
	return append(sinks, extra...)
}

// Close shuts down every backend in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	// Sync fails on non-file stderr; ignore it.
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

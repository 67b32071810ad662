package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/comics-crawler/internal/comic"
	"github.com/JakeFAU/comics-crawler/internal/crawlstate"
	"github.com/JakeFAU/comics-crawler/internal/dispatcher"
	"github.com/JakeFAU/comics-crawler/internal/fetcher"
	"github.com/JakeFAU/comics-crawler/internal/metrics"
	"github.com/JakeFAU/comics-crawler/internal/sitemap"
	"github.com/JakeFAU/comics-crawler/internal/store"
)

// Config tunes the orchestrator.
type Config struct {
	// Concurrency bounds in-flight product pages. Non-positive means DefaultConcurrency.
	Concurrency int
}

// Dependencies are the collaborators of an Orchestrator. Limiter and Archive are optional.
type Dependencies struct {
	SitemapFetcher fetcher.Fetcher
	PageFetcher    fetcher.Fetcher
	Scraper        Scraper
	Tracker        StateTracker
	Limiter        Limiter
	Archive        Archiver
	Clock          Clock
}

// Orchestrator runs resumable sitemap crawls.
type Orchestrator struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
}

// New constructs an Orchestrator.
func New(deps Dependencies, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	switch {
	case deps.SitemapFetcher == nil:
		return nil, errors.New("sitemap fetcher is required")
	case deps.PageFetcher == nil:
		return nil, errors.New("page fetcher is required")
	case deps.Scraper == nil:
		return nil, errors.New("scraper is required")
	case deps.Tracker == nil:
		return nil, errors.New("state tracker is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger}, nil
}

// Run crawls target, delivering every extracted record to sink.
//
// Sub-sitemaps already completed in the ledger are skipped. Failures of a
// single page or sub-sitemap are logged, counted and recorded in the ledger;
// only an unusable sitemap index or a canceled ctx ends the run early.
func (o *Orchestrator) Run(ctx context.Context, target Target, sink Sink) (Summary, error) {
	var summary Summary
	logger := o.logger.With(zap.String("site", target.Site))

	body, err := o.deps.SitemapFetcher.FetchText(ctx, target.IndexURL, target.Headers)
	if err != nil {
		return summary, fmt.Errorf("fetch sitemap index %s: %w", target.IndexURL, err)
	}
	locs, err := sitemap.ParseSitemapIndex(body)
	if err != nil {
		return summary, fmt.Errorf("parse sitemap index %s: %w", target.IndexURL, err)
	}
	subs := sitemap.FilterByMarker(locs, target.ProductMarker)
	logger.Info("sitemap index loaded", zap.Int("entries", len(locs)), zap.Int("product_sitemaps", len(subs)))

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.SitemapsSeen++
		if err := o.crawlSitemap(ctx, target, sub, sink, &summary, logger.With(zap.String("sitemap", sub))); err != nil {
			return summary, err
		}
	}

	logger.Info("crawl finished",
		zap.Int("sitemaps_completed", summary.SitemapsCompleted),
		zap.Int("sitemaps_skipped", summary.SitemapsSkipped),
		zap.Int("sitemaps_failed", summary.SitemapsFailed),
		zap.Int("items_delivered", summary.ItemsDelivered),
		zap.Int("items_failed", summary.ItemsFailed),
	)
	return summary, nil
}

// crawlSitemap processes one sub-sitemap. It returns an error only when ctx is done.
func (o *Orchestrator) crawlSitemap(
	ctx context.Context,
	target Target,
	sub string,
	sink Sink,
	summary *Summary,
	logger *zap.Logger,
) error {
	state, err := o.deps.Tracker.Ensure(ctx, target.Site, sub)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("load crawl state failed", zap.Error(err))
		summary.SitemapsFailed++
		return nil
	}
	if state.Status == store.StatusCompleted {
		logger.Debug("sitemap already completed, skipping")
		summary.SitemapsSkipped++
		metrics.ObserveSitemap(target.Site, "skipped")
		return nil
	}

	state, err = o.deps.Tracker.Transition(ctx, state.ID, store.StatusInProgress, crawlstate.Extra{StartedAt: o.deps.Clock.Now()})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("mark sitemap in progress failed", zap.Error(err))
		summary.SitemapsFailed++
		return nil
	}

	urls, err := o.loadURLSet(ctx, sub, target.Headers)
	if err != nil {
		if ctx.Err() != nil {
			o.markFailed(ctx, state, ctx.Err(), logger)
			summary.SitemapsFailed++
			return ctx.Err()
		}
		logger.Warn("sitemap failed", zap.Error(err))
		o.markFailed(ctx, state, err, logger)
		summary.SitemapsFailed++
		return nil
	}

	delivered, failed := o.scrapeAll(ctx, target, sub, urls, sink)
	summary.ItemsDelivered += delivered
	summary.ItemsFailed += failed

	if err := ctx.Err(); err != nil {
		o.markFailed(ctx, state, err, logger)
		summary.SitemapsFailed++
		return err
	}

	count := delivered
	_, err = o.deps.Tracker.Transition(ctx, state.ID, store.StatusCompleted, crawlstate.Extra{
		CompletedAt: o.deps.Clock.Now(),
		Count:       &count,
	})
	if err != nil {
		logger.Error("mark sitemap completed failed", zap.Error(err))
		summary.SitemapsFailed++
		return nil
	}
	summary.SitemapsCompleted++
	metrics.ObserveSitemap(target.Site, string(store.StatusCompleted))
	logger.Info("sitemap completed", zap.Int("urls", len(urls)), zap.Int("delivered", delivered), zap.Int("failed", failed))
	return nil
}

func (o *Orchestrator) loadURLSet(ctx context.Context, sub string, headers http.Header) ([]string, error) {
	body, err := o.deps.SitemapFetcher.FetchText(ctx, sub, headers)
	if err != nil {
		return nil, err
	}
	urls, err := sitemap.ParseURLSet(body)
	if err != nil {
		return nil, fmt.Errorf("parse url set %s: %w", sub, err)
	}
	return urls, nil
}

// markFailed records cause on the row. The write ignores cancellation of ctx.
func (o *Orchestrator) markFailed(ctx context.Context, state store.CrawlState, cause error, logger *zap.Logger) {
	_, err := o.deps.Tracker.Transition(context.WithoutCancel(ctx), state.ID, store.StatusFailed, crawlstate.Extra{
		Error: cause.Error(),
	})
	if err != nil {
		logger.Error("mark sitemap failed", zap.Error(err))
	}
	metrics.ObserveSitemap(state.Site, string(store.StatusFailed))
}

func (o *Orchestrator) scrapeAll(ctx context.Context, target Target, sub string, urls []string, sink Sink) (int, int) {
	var (
		delivered atomic.Int64
		failed    atomic.Int64
		group     errgroup.Group
	)
	group.SetLimit(o.cfg.Concurrency)

	for _, pageURL := range urls {
		if ctx.Err() != nil {
			break
		}
		group.Go(func() error {
			metrics.IncInflight()
			defer metrics.DecInflight()

			if err := o.processItem(ctx, target, pageURL, sink); err != nil {
				failed.Add(1)
				o.logger.Warn("item failed",
					zap.String("site", target.Site),
					zap.String("sitemap", sub),
					zap.String("url", pageURL),
					zap.Error(err),
				)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = group.Wait()
	return int(delivered.Load()), int(failed.Load())
}

// processItem fetches, extracts and delivers one product page.
func (o *Orchestrator) processItem(ctx context.Context, target Target, pageURL string, sink Sink) error {
	rec, html, err := o.scrape(ctx, target.Site, pageURL, target.Headers)
	if err != nil {
		metrics.ObserveScrape(target.Site, classify(err), len(html))
		return err
	}
	if err := deliver(ctx, sink, rec); err != nil {
		metrics.ObserveScrape(target.Site, metrics.OutcomeSinkError, len(html))
		return fmt.Errorf("deliver record: %w", err)
	}
	metrics.ObserveScrape(target.Site, metrics.OutcomeSuccess, len(html))
	return nil
}

// deliver hands rec to sink, reporting a panicking sink as an error.
func deliver(ctx context.Context, sink Sink, rec comic.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return sink.OnRecord(ctx, rec)
}

// ScrapeURL fetches and extracts a single product page outside of a crawl.
func (o *Orchestrator) ScrapeURL(ctx context.Context, pageURL string, headers http.Header) (comic.Record, error) {
	site := o.deps.Scraper.SiteFor(pageURL)
	rec, html, err := o.scrape(ctx, site, pageURL, headers)
	if err != nil {
		metrics.ObserveScrape(site, classify(err), len(html))
		return comic.Record{}, err
	}
	metrics.ObserveScrape(site, metrics.OutcomeSuccess, len(html))
	return rec, nil
}

func (o *Orchestrator) scrape(ctx context.Context, site, pageURL string, headers http.Header) (comic.Record, string, error) {
	if o.deps.Limiter != nil {
		if err := o.deps.Limiter.Wait(ctx, pageURL); err != nil {
			return comic.Record{}, "", &fetcher.TransportError{URL: pageURL, Err: err}
		}
	}
	html, err := o.deps.PageFetcher.FetchText(ctx, pageURL, headers)
	if err != nil {
		return comic.Record{}, "", err
	}
	if o.deps.Archive != nil {
		if _, err := o.deps.Archive.Save(ctx, site, pageURL, html); err != nil {
			o.logger.Warn("archive page failed", zap.String("site", site), zap.String("url", pageURL), zap.Error(err))
		}
	}
	rec, err := o.deps.Scraper.Scrape(pageURL, html)
	if err != nil {
		return comic.Record{}, html, err
	}
	return rec, html, nil
}

func classify(err error) string {
	var (
		transportErr *fetcher.TransportError
		dispatchErr  *dispatcher.DispatchError
	)
	switch {
	case errors.As(err, &transportErr):
		return metrics.OutcomeFetchError
	case errors.As(err, &dispatchErr):
		return metrics.OutcomeDispatchError
	default:
		return metrics.OutcomeExtractionError
	}
}

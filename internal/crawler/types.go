// Package crawler drives a resumable sitemap crawl: it walks a site's sitemap
// index, tracks each product sub-sitemap in the crawl-state ledger, and feeds
// every product page through the site dispatcher into a Sink.
package crawler

import (
	"context"
	"net/http"
	"time"

	"github.com/JakeFAU/comics-crawler/internal/comic"
	"github.com/JakeFAU/comics-crawler/internal/crawlstate"
	"github.com/JakeFAU/comics-crawler/internal/store"
)

// DefaultConcurrency bounds in-flight product pages per sub-sitemap.
const DefaultConcurrency = 5

// Target names one site crawl.
type Target struct {
	// Site labels state rows, archive keys and metrics.
	Site     string
	IndexURL string
	// ProductMarker selects product sub-sitemaps from the index by substring. Empty keeps all.
	ProductMarker string
	// Headers are sent with every sitemap and page request.
	Headers http.Header
}

// Summary reports what one Run did.
type Summary struct {
	SitemapsSeen      int `json:"sitemapsSeen"`
	SitemapsSkipped   int `json:"sitemapsSkipped"`
	SitemapsCompleted int `json:"sitemapsCompleted"`
	SitemapsFailed    int `json:"sitemapsFailed"`
	ItemsDelivered    int `json:"itemsDelivered"`
	ItemsFailed       int `json:"itemsFailed"`
}

// Scraper turns product HTML into a record.
type Scraper interface {
	Scrape(rawURL, html string) (comic.Record, error)
	SiteFor(rawURL string) string
}

// StateTracker is the crawl-state ledger the orchestrator drives.
type StateTracker interface {
	Ensure(ctx context.Context, site, url string) (store.CrawlState, error)
	Transition(ctx context.Context, id string, status store.CrawlStatus, extra crawlstate.Extra) (store.CrawlState, error)
}

// Limiter paces requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Archiver keeps a copy of raw product HTML.
type Archiver interface {
	Save(ctx context.Context, site, url, html string) (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

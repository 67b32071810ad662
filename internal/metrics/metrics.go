// Package metrics exposes Prometheus collectors for the crawler and its API.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scrape outcomes recorded on comics_scrapes_total.
const (
	OutcomeSuccess         = "success"
	OutcomeFetchError      = "fetch_error"
	OutcomeDispatchError   = "dispatch_error"
	OutcomeExtractionError = "extraction_error"
	OutcomeSinkError       = "sink_error"
)

var (
	scrapesTotal               *prometheus.CounterVec
	sitemapsTotal              *prometheus.CounterVec
	fetchedBytesTotal          *prometheus.CounterVec
	inflightItems              prometheus.Gauge
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comics_scrapes_total",
				Help: "Product pages processed, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		sitemapsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comics_sitemaps_total",
				Help: "Sub-sitemaps processed, labeled by site and final status.",
			},
			[]string{"site", "status"},
		)

		fetchedBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comics_fetched_bytes_total",
				Help: "Bytes of product HTML fetched, labeled by site.",
			},
			[]string{"site"},
		)

		inflightItems = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "comics_inflight_items",
				Help: "Product pages currently being fetched or extracted.",
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "comics_rate_limit_delay_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from a URL, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScrape counts one processed product page.
func ObserveScrape(site, outcome string, bytesFetched int) {
	Init()
	scrapesTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		fetchedBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveSitemap counts one sub-sitemap reaching status.
func ObserveSitemap(site, status string) {
	Init()
	sitemapsTotal.WithLabelValues(site, status).Inc()
}

// IncInflight marks an item as started.
func IncInflight() {
	Init()
	inflightItems.Inc()
}

// DecInflight marks an item as finished.
func DecInflight() {
	Init()
	inflightItems.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one API request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

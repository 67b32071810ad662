// Package collyfetcher implements fetcher.Fetcher for product pages using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/comics-crawler/internal/fetcher"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// Headers are sent with every request, before per-call headers.
	Headers http.Header
}

// Fetcher implements fetcher.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type fetchResult struct {
	body   string
	status int
	err    error
}

// New builds a Fetcher. Product pages are re-fetched on every crawl run, so
// URL revisits are allowed.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = fetcher.DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.DetectCharset(),
	)
	c.WithTransport(newHTTPTransport())
	// Clones share the backend HTTP client; it must not be reconfigured per fetch.
	c.UserAgent = cfg.UserAgent
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.SetRequestTimeout(cfg.Timeout)
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// FetchText executes a single GET and returns the body as text.
func (f *Fetcher) FetchText(ctx context.Context, url string, headers http.Header) (string, error) {
	var result fetchResult
	collector := f.buildCollector(headers, &result)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return "", &fetcher.TransportError{URL: url, Err: fmt.Errorf("colly fetch canceled: %w", ctx.Err())}
	case err := <-done:
		if result.err != nil {
			return "", &fetcher.TransportError{URL: url, StatusCode: result.status, Err: result.err}
		}
		if err != nil {
			return "", &fetcher.TransportError{URL: url, StatusCode: result.status, Err: fmt.Errorf("colly visit failed: %w", err)}
		}
		return result.body, nil
	}
}

func (f *Fetcher) buildCollector(headers http.Header, result *fetchResult) *colly.Collector {
	collector := f.baseCollector.Clone()
	f.configureCollectorHooks(collector, headers, result)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, headers http.Header, result *fetchResult) {
	hooks.OnRequest(func(r *colly.Request) {
		copyHeaders(f.cfg.Headers, r)
		copyHeaders(headers, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		result.body = string(r.Body)
		result.status = r.StatusCode
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.status = r.StatusCode
			if r.StatusCode >= http.StatusBadRequest {
				err = fmt.Errorf("%w: %v", fetcher.ErrUnexpectedStatus, err)
			}
		}
		result.err = err
	})
}

func copyHeaders(headers http.Header, r *colly.Request) {
	for key, values := range headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

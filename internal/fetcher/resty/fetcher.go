// Package restyfetcher implements fetcher.Fetcher for sitemap documents using
// go-resty with bounded exponential retry.
package restyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/JakeFAU/comics-crawler/internal/fetcher"
)

// Config controls the HTTP client.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// Transport overrides the default round tripper. Nil keeps resty's default.
	Transport http.RoundTripper
	// Logger receives resty's retry warnings. Nil discards them.
	Logger *zap.Logger
}

// Fetcher implements fetcher.Fetcher on top of a resty client.
type Fetcher struct {
	client *resty.Client
}

// New builds a Fetcher. Transport errors, 429 and 5xx responses are retried.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = fetcher.DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 500 * time.Millisecond
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = cfg.BackoffInitial
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/xml,text/xml;q=0.9,*/*;q=0.8").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.BackoffInitial).
		SetRetryMaxWaitTime(cfg.BackoffMax).
		AddRetryCondition(shouldRetry).
		SetLogger(cfg.Logger.Sugar())
	if cfg.Transport != nil {
		client.SetTransport(cfg.Transport)
	}
	return &Fetcher{client: client}
}

func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// FetchText performs the GET, retrying per Config, and decodes the body to UTF-8
// using the response Content-Type.
func (f *Fetcher) FetchText(ctx context.Context, url string, headers http.Header) (string, error) {
	req := f.client.R().SetContext(ctx)
	for key, values := range headers {
		req.SetHeaderMultiValues(map[string][]string{key: values})
	}

	resp, err := req.Get(url)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode()
		}
		return "", &fetcher.TransportError{URL: url, StatusCode: status, Err: err}
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return "", &fetcher.TransportError{
			URL:        url,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("%w: %s", fetcher.ErrUnexpectedStatus, resp.Status()),
		}
	}

	text, err := decode(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return "", &fetcher.TransportError{URL: url, StatusCode: resp.StatusCode(), Err: err}
	}
	return text, nil
}

func decode(body []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(out), nil
}

// Package fetcher declares the text-fetching contract used by the crawler and its error type.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DefaultUserAgent mimics a desktop Chrome browser; the retailers serve reduced
// markup to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// ErrUnexpectedStatus is wrapped by TransportError for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Fetcher performs a GET and returns the body decoded as UTF-8 text.
type Fetcher interface {
	FetchText(ctx context.Context, url string, headers http.Header) (string, error)
}

// TransportError reports a network or HTTP failure. StatusCode is zero when no response arrived.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CookieHeader returns a header bag carrying cookie, or nil when cookie is blank.
func CookieHeader(cookie string) http.Header {
	cookie = strings.TrimSpace(cookie)
	if cookie == "" {
		return nil
	}
	h := http.Header{}
	h.Set("Cookie", cookie)
	return h
}

// Func adapts a function to Fetcher.
type Func func(ctx context.Context, url string, headers http.Header) (string, error)

// FetchText implements Fetcher.
func (f Func) FetchText(ctx context.Context, url string, headers http.Header) (string, error) {
	return f(ctx, url, headers)
}

package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/comics-crawler/internal/fetcher"
)

func TestFetchTextReturnsBodyAndSendsHeaders(t *testing.T) {
	t.Parallel()

	seen := make(chan http.Header, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<h1 class="product-title">Edição</h1>`))
	}))
	defer srv.Close()

	f := New(Config{
		Timeout: time.Second,
		Headers: http.Header{"Accept-Language": {"pt-BR"}},
	})
	body, err := f.FetchText(context.Background(), srv.URL+"/produto/a", fetcher.CookieHeader("sucuri_cloudproxy=abc"))
	require.NoError(t, err)
	require.Equal(t, `<h1 class="product-title">Edição</h1>`, body)
	got := <-seen
	require.Equal(t, "sucuri_cloudproxy=abc", got.Get("Cookie"))
	require.Equal(t, fetcher.DefaultUserAgent, got.Get("User-Agent"))
	require.Equal(t, "pt-BR", got.Get("Accept-Language"))

	// Revisits are allowed across crawl runs.
	_, err = f.FetchText(context.Background(), srv.URL+"/produto/a", nil)
	require.NoError(t, err)
}

func TestFetchTextReportsHTTPStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(Config{Timeout: time.Second}).FetchText(context.Background(), srv.URL, nil)
	var transportErr *fetcher.TransportError
	require.True(t, errors.As(err, &transportErr))
	require.Equal(t, http.StatusNotFound, transportErr.StatusCode)
	require.Equal(t, srv.URL, transportErr.URL)
	require.ErrorIs(t, err, fetcher.ErrUnexpectedStatus)
}

func TestFetchTextConcurrentCalls(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 2 * time.Second, UserAgent: "comics-test"})
	const calls = 8
	var wg sync.WaitGroup
	bodies := make([]string, calls)
	errs := make([]error, calls)
	for i := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bodies[i], errs[i] = f.FetchText(context.Background(), srv.URL+"/p/"+strconv.Itoa(i), nil)
		}()
	}
	wg.Wait()

	for i := range calls {
		require.NoError(t, errs[i])
		require.Equal(t, "/p/"+strconv.Itoa(i), bodies[i])
	}
}

func TestFetchTextHonoursContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{Timeout: 5 * time.Second}).FetchText(ctx, srv.URL, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{Headers: http.Header{"X-Static": {"1"}}})
	var result fetchResult
	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, http.Header{"X-Trace": {"yes"}}, &result)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	require.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))
	require.Equal(t, "1", collyReq.Headers.Get("X-Static"))

	hooks.onResponse(&colly.Response{StatusCode: http.StatusOK, Body: []byte("body")})
	require.Equal(t, "body", result.body)

	hooks.onError(&colly.Response{StatusCode: http.StatusServiceUnavailable}, errors.New("Service Unavailable"))
	require.ErrorIs(t, result.err, fetcher.ErrUnexpectedStatus)
	require.Equal(t, http.StatusServiceUnavailable, result.status)
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/comics-crawler/internal/app"
	"github.com/JakeFAU/comics-crawler/internal/comic"
	"github.com/JakeFAU/comics-crawler/internal/config"
	"github.com/JakeFAU/comics-crawler/internal/crawler"
	"github.com/JakeFAU/comics-crawler/internal/crawlstate"
	"github.com/JakeFAU/comics-crawler/internal/fetcher"
	"github.com/JakeFAU/comics-crawler/internal/store"
)

const (
	indexURL   = "https://comicboom.com.br/wp-sitemap.xml"
	productURL = "https://comicboom.com.br/produto/spiderman/"
)

const testConfig = `
crawler:
  concurrency: 2
  cookie: sucuri_cloudproxy=abc
state:
  driver: memory
records:
  driver: memory
archive:
  driver: none
targets:
  - site: comicboom
    index_url: https://comicboom.com.br/wp-sitemap.xml
    product_marker: wp-sitemap-posts-product-
`

// harness swaps the package factories for fakes and restores them on cleanup.
// Tests using it must not run in parallel.
type harness struct {
	configPath string
	app        *app.App
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	product, err := os.ReadFile(filepath.Join("..", "internal", "extract", "testdata", "comicboom_in_stock.html"))
	require.NoError(t, err)
	bodies := map[string]string{
		indexURL: `<sitemapindex>` +
			`<sitemap><loc>https://comicboom.com.br/wp-sitemap-posts-product-1.xml</loc></sitemap>` +
			`<sitemap><loc>https://comicboom.com.br/wp-sitemap-posts-page-1.xml</loc></sitemap>` +
			`</sitemapindex>`,
		"https://comicboom.com.br/wp-sitemap-posts-product-1.xml": `<urlset><url><loc>` + productURL + `</loc></url></urlset>`,
		productURL: string(product),
	}
	fake := fetcher.Func(func(_ context.Context, url string, _ http.Header) (string, error) {
		body, ok := bodies[url]
		if !ok {
			return "", &fetcher.TransportError{URL: url, StatusCode: http.StatusNotFound, Err: fetcher.ErrUnexpectedStatus}
		}
		return body, nil
	})

	h := &harness{configPath: filepath.Join(t.TempDir(), "config.yaml")}
	require.NoError(t, os.WriteFile(h.configPath, []byte(testConfig), 0o600))

	prevApp, prevLogger := newApp, newLogger
	newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
		a, err := app.New(ctx, cfg, logger, app.WithFetchers(fake, fake))
		h.app = a
		return a, err
	}
	newLogger = func(config.Config) (*zap.Logger, error) { return zap.NewNop(), nil }
	t.Cleanup(func() { newApp, newLogger = prevApp, prevLogger })
	return h
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", h.configPath, "--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCrawlCommand(t *testing.T) {
	h := newHarness(t)
	outFile := filepath.Join(t.TempDir(), "records.jsonl")

	stdout, err := h.run(t, "crawl", "--out", outFile)
	require.NoError(t, err)

	var summaries map[string]crawler.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summaries))
	assert.Equal(t, crawler.Summary{SitemapsSeen: 1, SitemapsCompleted: 1, ItemsDelivered: 1}, summaries["comicboom"])

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var rec comic.Record
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, productURL, rec.URL)

	stored, err := h.app.Comics().Select(context.Background(), store.ComicFilter{URL: productURL})
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestCrawlCommandContinuesPastFailingTarget(t *testing.T) {
	h := newHarness(t)
	cfg := testConfig + `  - site: panini
    index_url: https://panini.com.br/sitemap.xml
`
	cfg = strings.Replace(cfg, "targets:\n", "targets:\n  - site: comix\n    index_url: https://www.comix.com.br/sitemap.xml\n", 1)
	require.NoError(t, os.WriteFile(h.configPath, []byte(cfg), 0o600))

	stdout, err := h.run(t, "crawl")
	require.ErrorContains(t, err, "crawl comix")
	require.ErrorContains(t, err, "crawl panini")

	var summaries map[string]crawler.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summaries))
	assert.Equal(t, 1, summaries["comicboom"].ItemsDelivered)

	stored, err := h.app.Comics().Select(context.Background(), store.ComicFilter{URL: productURL})
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestCrawlCommandUnknownSite(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "crawl", "--site", "comix")
	require.ErrorContains(t, err, `no target configured for site "comix"`)
}

func TestScrapeCommand(t *testing.T) {
	h := newHarness(t)

	stdout, err := h.run(t, "scrape", productURL, "--save")
	require.NoError(t, err)

	var rec comic.Record
	require.NoError(t, json.Unmarshal([]byte(stdout), &rec))
	assert.Equal(t, "Spiderman Comic Book", rec.Title)

	stored, err := h.app.Comics().Select(context.Background(), store.ComicFilter{URL: productURL})
	require.NoError(t, err)
	require.Len(t, stored, 1)

	_, err = h.run(t, "scrape", "https://example.com/produto/x")
	require.Error(t, err)

	_, err = h.run(t, "scrape")
	require.Error(t, err)
}

func TestStatesCommand(t *testing.T) {
	h := newHarness(t)

	stdout, err := h.run(t, "states")
	require.NoError(t, err)
	assert.Contains(t, stdout, "SITE")
	assert.Contains(t, stdout, "SITEMAP")
}

// runStates executes the states subcommand against an already built app.
func runStates(t *testing.T, a *app.App, args ...string) string {
	t.Helper()
	cmd := newStatesCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.WithValue(context.Background(), appKey, a)))
	return out.String()
}

func TestStatesCommandListsLedger(t *testing.T) {
	cfg, err := config.Load(newHarness(t).configPath)
	require.NoError(t, err)
	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	ctx := context.Background()
	done, err := a.Tracker().Ensure(ctx, "comicboom", "https://comicboom.com.br/wp-sitemap-posts-product-1.xml")
	require.NoError(t, err)
	_, err = a.Tracker().Transition(ctx, done.ID, store.StatusInProgress, crawlstate.Extra{})
	require.NoError(t, err)
	count := 12
	_, err = a.Tracker().Transition(ctx, done.ID, store.StatusCompleted, crawlstate.Extra{Count: &count})
	require.NoError(t, err)
	_, err = a.Tracker().Ensure(ctx, "panini", "https://panini.com.br/sitemap-1.xml")
	require.NoError(t, err)

	table := runStates(t, a, "--site", "comicboom")
	assert.Contains(t, table, "completed")
	assert.Contains(t, table, "12")
	assert.NotContains(t, table, "panini")

	var states []store.CrawlState
	require.NoError(t, json.Unmarshal([]byte(runStates(t, a, "--json")), &states))
	assert.Len(t, states, 2)
}

func TestRootRejectsBadConfig(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.configPath, []byte("crawler:\n  concurrency: 0\n"), 0o600))

	_, err := h.run(t, "states")
	require.ErrorContains(t, err, "crawler.concurrency must be > 0")
}

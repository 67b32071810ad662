// Command comics-crawler scrapes comic listings from Brazilian retailers.
//
// Architecture overview:
//   - Crawl: for each configured target the orchestrator reads the sitemap index with a retrying
//     resty client, keeps the product sub-sitemaps, and records each one in the crawl-state ledger
//     (memory, Postgres or Redis). Completed sub-sitemaps are skipped on later runs, so an
//     interrupted crawl resumes where it stopped.
//   - Scrape: product pages are fetched through colly with a bounded errgroup pool and an optional
//     per-host token bucket, archived to local disk or GCS when enabled, and routed by hostname to
//     a site strategy that extracts a comic record with goquery.
//   - Deliver: records are upserted by URL into the record repository and, when a topic is
//     configured, published to Pub/Sub. A failing page never aborts its sub-sitemap.
//   - Serve: a chi API exposes stored records, single-URL scraping and the crawl ledger, with
//     Prometheus metrics on /metrics.
//
// Configuration comes from an optional YAML file plus COMICS_* environment variables (a .env file
// is loaded first when present).
package main

import (
	"github.com/JakeFAU/comics-crawler/cmd"
)

func main() {
	cmd.Execute()
}

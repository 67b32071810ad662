// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/comics and /v1/comics/{isbn13} to read stored records.
//   - PUT /v1/comics/upsert?url= to scrape one product page and store it.
//   - GET /v1/crawl-states and /v1/crawl-states/{id} to inspect the resumability ledger.
package api

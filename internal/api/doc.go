// Package api hosts the HTTP server, middleware, and REST handlers.
// Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/sentiment for on-demand title analysis.
//   - /api/crawler/... to start, stop and inspect the background crawl.
//   - GET /api/trending for the daily most-popular and emerging report.
package api

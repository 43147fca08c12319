// Package main hosts the sentiment service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, on-demand sentiment, the trending report and the
//     background crawler controls. Errors map onto 400/404/502/504 through the crawler error taxonomy.
//   - Upstream access: every Steam store and SteamSpy call goes through the Colly-based fetcher, paced per host by a
//     token bucket (golang.org/x/time/rate). Review pages are walked by cursor until a termination rule fires.
//   - Sentiment: reviews are scored with the bundled lexicons and summarised into themes, pros, cons and a verdict.
//     On-demand queries fall back to a bundled sample unless strict=1.
//   - Trending: three discovery feeds are fetched concurrently, merged by app id, enriched with app details and
//     scored into the most-popular and emerging-hits lists. The result is cached per UTC day in the document store.
//   - Background crawl: one sweep at a time over the SteamSpy catalog, persisting each title's analysis and the
//     crawler status into the crawl database document. Finished titles and runs are published to Pub/Sub when a
//     project is configured.
//   - Storage: the document store backend is memory, local files, SQLite, Postgres or GCS.
//
// Quick checklist:
//   - Configure env vars with the STEAMSENT_ prefix (for example STEAMSENT_STORAGE_BACKEND,
//     STEAMSENT_SERVER_PORT) or pass -config config.yaml. A .env file is loaded when present. PORT overrides the
//     listen port.
//   - Run locally: go run ./cmd/steamsentiment -config config.yaml
//   - SIGINT/SIGTERM drains HTTP, stops any running crawl and closes the store.
package main

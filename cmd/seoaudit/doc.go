// Package main hosts the SEO audit service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes the probe endpoints (/onpage, /crawl, /performance, /audit), the
//     report job endpoints (/generate-report, /report-status/{job_id}) and health/metrics routes.
//   - Probes: the page-speed probe scores mobile and desktop through the scoring API with a host-keyed on-disk
//     cache; the crawlability probe reads robots.txt and sitemaps; the on-page probe renders the page with
//     headless Chrome (or a static colly fetch) and extracts titles, headings, links and keyword usage.
//   - Aggregation: internal/aggregator runs all three probes concurrently and keeps every failure as an entry of
//     the report's errors map instead of aborting.
//   - Report jobs: internal/orchestrator runs each job in its own goroutine through fetching_data,
//     generating_text (Ollama) and creating_presentation (Gamma), stores the audit, slides and metrics artifacts,
//     publishes a notification and reports failures to Sentry.
//   - Configuration & plumbing: Viper populates config from env (prefix SEOAUDIT), a .env file and an optional
//     config file; zap provides structured logging; Prometheus metrics are served on /metrics.
//
// Quick checklist:
//   - Export GOOGLE_API_KEY for page-speed scoring and GAMMA_API_KEY for slide decks.
//   - Run an Ollama server (SEOAUDIT_NARRATIVE_ENDPOINT, default http://127.0.0.1:11434) for report text.
//   - Run locally: go run ./cmd/seoaudit -config config.yaml (or rely solely on env overrides).
//   - Set SEOAUDIT_PUBSUB_PROJECT_ID to publish job notifications and SEOAUDIT_SENTRY_DSN to report failures.
//   - Throttle individual upstreams with SEOAUDIT_HTTP_HOST_RATE_LIMITS, e.g. "www.googleapis.com=0.5".
package main

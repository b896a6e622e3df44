// Package api hosts the HTTP server, middleware, and REST handlers of the
// audit service. Notable routes:
//   - GET /onpage, /crawl, /performance (alias /pagespeed) run one probe synchronously.
//   - GET /audit runs every probe and returns the combined report.
//   - POST /generate-report starts a report job; GET /report-status/{job_id} polls it.
//   - GET /healthz, /readyz and /metrics for operators.
package api

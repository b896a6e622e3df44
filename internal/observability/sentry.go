// Package observability reports failed report jobs to Sentry.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/JakeFAU/seo-audit-service/internal/audit"
)

// Config configures error reporting. An empty DSN disables reporting.
type Config struct {
	DSN         string
	Environment string
	Release     string
}

// Reporter sends job failures to Sentry through its own hub.
type Reporter struct {
	hub *sentry.Hub
}

// New builds a Reporter. opts may adjust the client options before the client is created.
func New(cfg Config, opts ...func(*sentry.ClientOptions)) (*Reporter, error) {
	if cfg.DSN == "" {
		return &Reporter{}, nil
	}
	options := sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
	}
	for _, opt := range opts {
		opt(&options)
	}
	client, err := sentry.NewClient(options)
	if err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Enabled reports whether events are sent anywhere.
func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// ReportJobFailure captures a failed job with its ID, URL and status as tags.
func (r *Reporter) ReportJobFailure(_ context.Context, job audit.Job) {
	if !r.Enabled() {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("event_type", "report_job_failed")
		scope.SetTag("job_id", job.ID)
		scope.SetTag("target_host", audit.Host(job.URL))
		scope.SetContext("job", map[string]any{
			"url":       job.URL,
			"keyword":   job.Keyword,
			"status":    string(job.Status),
			"submitted": job.Submitted,
		})
		r.hub.CaptureMessage(fmt.Sprintf("report job failed: %s", job.Result))
	})
}

// Flush waits up to timeout for buffered events to be delivered.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return r.hub.Flush(timeout)
}

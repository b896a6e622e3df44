package observability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-audit-service/internal/audit"
)

type capturedEvents struct {
	mu     sync.Mutex
	events []*sentry.Event
}

// intercept records events and drops them before any network send.
func (c *capturedEvents) intercept(opts *sentry.ClientOptions) {
	opts.BeforeSend = func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, event)
		return nil
	}
}

func (c *capturedEvents) all() []*sentry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*sentry.Event(nil), c.events...)
}

func TestReporter_DisabledWithoutDSN(t *testing.T) {
	t.Parallel()

	r, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, r.Enabled())
	r.ReportJobFailure(context.Background(), audit.Job{ID: "job-1"})
	assert.True(t, r.Flush(time.Millisecond))
}

func TestReporter_CapturesJobFailure(t *testing.T) {
	t.Parallel()

	captured := &capturedEvents{}
	r, err := New(Config{DSN: "https://public@example.com/1", Environment: "test"}, captured.intercept)
	require.NoError(t, err)
	require.True(t, r.Enabled())

	r.ReportJobFailure(context.Background(), audit.Job{
		ID:     "job-7",
		URL:    "https://Example.com/shop",
		Status: audit.JobStatusFailed,
		Result: "Failed to create the presentation: HTTP 401",
	})

	events := captured.all()
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, "report job failed: Failed to create the presentation: HTTP 401", event.Message)
	assert.Equal(t, sentry.LevelError, event.Level)
	assert.Equal(t, "job-7", event.Tags["job_id"])
	assert.Equal(t, "example.com", event.Tags["target_host"])
	assert.Equal(t, "test", event.Environment)
}

func TestReporter_InvalidDSN(t *testing.T) {
	t.Parallel()

	_, err := New(Config{DSN: "not a dsn"})
	require.Error(t, err)
}

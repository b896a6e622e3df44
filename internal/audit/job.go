package audit

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrJobNotFound is returned by job stores for unknown IDs.
var ErrJobNotFound = errors.New("job not found")

// JobStatus enumerates the report job lifecycle.
type JobStatus string

// Job lifecycle states. NotFound is only ever reported by lookups, never stored.
const (
	JobStatusPending              JobStatus = "pending"
	JobStatusFetchingData         JobStatus = "fetching_data"
	JobStatusGeneratingText       JobStatus = "generating_text"
	JobStatusCreatingPresentation JobStatus = "creating_presentation"
	JobStatusComplete             JobStatus = "complete"
	JobStatusFailed               JobStatus = "failed"
	JobStatusNotFound             JobStatus = "not_found"
)

// Terminal reports whether no further transitions can happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// Job tracks one report generation request.
type Job struct {
	ID        string            `json:"job_id"`
	URL       string            `json:"url"`
	Keyword   string            `json:"keyword,omitempty"`
	Status    JobStatus         `json:"status"`
	Result    string            `json:"result,omitempty"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
	Submitted time.Time         `json:"submitted"`
	Started   *time.Time        `json:"started,omitempty"`
	Finished  *time.Time        `json:"finished,omitempty"`
}

// JobStore persists jobs. Status and result are always written together.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, result string) error
	RecordArtifact(ctx context.Context, jobID, name, uri string) error
}

// IDGenerator creates opaque job identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// BlobStore persists report artifacts and returns a URI for each.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher emits job notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

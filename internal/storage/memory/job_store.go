// Package memory provides in-process stores for jobs and report artifacts.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/seo-audit-service/internal/audit"
)

// JobStore is a concurrent map of jobs. Every read returns a copy, so callers
// never observe a half-applied update.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]audit.Job
	now  func() time.Time
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]audit.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job audit.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// UpdateJobStatus sets status and result together.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status audit.JobStatus,
	result string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("update %s: %w", jobID, audit.ErrJobNotFound)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s already %s", jobID, job.Status)
	}
	job.Status = status
	job.Result = result
	now := s.now()
	if status != audit.JobStatusPending && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if status.Terminal() {
		job.Finished = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

// RecordArtifact attaches a named artifact URI to a job.
func (s *JobStore) RecordArtifact(_ context.Context, jobID, name, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("record artifact for %s: %w", jobID, audit.ErrJobNotFound)
	}
	artifacts := make(map[string]string, len(job.Artifacts)+1)
	for k, v := range job.Artifacts {
		artifacts[k] = v
	}
	artifacts[name] = uri
	job.Artifacts = artifacts
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (audit.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.Job{}, audit.ErrJobNotFound
	}
	return cloneJob(job), nil
}

func cloneJob(job audit.Job) audit.Job {
	if job.Artifacts != nil {
		artifacts := make(map[string]string, len(job.Artifacts))
		for k, v := range job.Artifacts {
			artifacts[k] = v
		}
		job.Artifacts = artifacts
	}
	return job
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

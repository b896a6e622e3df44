// Package orchestrator runs report jobs through their lifecycle:
// pending, fetching_data, generating_text, creating_presentation, then
// complete or failed.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit-service/internal/aggregator"
	"github.com/JakeFAU/seo-audit-service/internal/audit"
	"github.com/JakeFAU/seo-audit-service/internal/metrics"
	"github.com/JakeFAU/seo-audit-service/internal/narrative"
)

// Artifact names recorded on a job.
const (
	ArtifactAudit   = "audit"
	ArtifactSlides  = "slides"
	ArtifactMetrics = "metrics"
)

// Auditor produces the combined report for a target.
type Auditor interface {
	Run(ctx context.Context, req aggregator.Request) (*aggregator.CombinedReport, error)
}

// Narrator writes narrative text for a report.
type Narrator interface {
	Generate(ctx context.Context, summary any) (string, error)
}

// Renderer turns slide text into a deliverable artifact reference.
type Renderer interface {
	Render(ctx context.Context, text string) (string, error)
}

// FailureReporter forwards failed jobs to an error tracker.
type FailureReporter interface {
	ReportJobFailure(ctx context.Context, job audit.Job)
}

// Deps are the collaborators of an Orchestrator. Blobs, Publisher and
// Reporter are optional.
type Deps struct {
	Store     audit.JobStore
	Auditor   Auditor
	Narrator  Narrator
	Renderer  Renderer
	Blobs     audit.BlobStore
	Publisher audit.Publisher
	Reporter  FailureReporter
	IDs       audit.IDGenerator
	Clock     audit.Clock
	Logger    *zap.Logger
}

// Config tunes job execution.
type Config struct {
	// MaxConcurrent bounds jobs running the pipeline at once; zero means unbounded.
	MaxConcurrent int
	// Topic receives a notification per finished job; empty disables notifications.
	Topic string
}

// SubmitRequest describes a report to build.
type SubmitRequest struct {
	URL     string
	Keyword string
}

// Notification is published when a job reaches a terminal state.
type Notification struct {
	JobID      string          `json:"job_id"`
	URL        string          `json:"url"`
	Status     audit.JobStatus `json:"status"`
	Result     string          `json:"result"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Orchestrator owns job records: only the task spawned for a job mutates it.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	slots  chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New builds an Orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("orchestrator: job store is required")
	case deps.Auditor == nil:
		return nil, errors.New("orchestrator: auditor is required")
	case deps.Narrator == nil:
		return nil, errors.New("orchestrator: narrator is required")
	case deps.Renderer == nil:
		return nil, errors.New("orchestrator: renderer is required")
	case deps.IDs == nil:
		return nil, errors.New("orchestrator: id generator is required")
	case deps.Clock == nil:
		return nil, errors.New("orchestrator: clock is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{cfg: cfg, deps: deps, logger: logger}
	if cfg.MaxConcurrent > 0 {
		o.slots = make(chan struct{}, cfg.MaxConcurrent)
	}
	return o, nil
}

// Submit records a pending job and starts its background task. It returns
// without waiting for any pipeline step.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (audit.Job, error) {
	target, err := audit.NormalizeTarget(req.URL)
	if err != nil {
		return audit.Job{}, err
	}
	id, err := o.deps.IDs.NewID()
	if err != nil {
		return audit.Job{}, fmt.Errorf("generate job id: %w", err)
	}
	job := audit.Job{
		ID:        id,
		URL:       target,
		Keyword:   req.Keyword,
		Status:    audit.JobStatusPending,
		Submitted: o.deps.Clock.Now(),
	}
	if err := o.deps.Store.CreateJob(ctx, job); err != nil {
		return audit.Job{}, fmt.Errorf("create job: %w", err)
	}
	metrics.ObserveJob(string(audit.JobStatusPending))
	o.logger.Info("job submitted", zap.String("job_id", id), zap.String("url", target))

	// Jobs outlive the submitting request and are never canceled.
	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(runCtx, job)
	}()
	return job, nil
}

// Status looks up a job. Unknown IDs yield a job with status not_found rather than an error.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (audit.Job, error) {
	job, err := o.deps.Store.GetJob(ctx, jobID)
	if errors.Is(err, audit.ErrJobNotFound) {
		return audit.Job{ID: jobID, Status: audit.JobStatusNotFound}, nil
	}
	if err != nil {
		return audit.Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// Wait blocks until every started job has finished or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}

func (o *Orchestrator) run(ctx context.Context, job audit.Job) {
	if o.slots != nil {
		o.slots <- struct{}{}
		defer func() { <-o.slots }()
	}
	metrics.IncActiveJobs()
	defer metrics.DecActiveJobs()

	logger := o.logger.With(zap.String("job_id", job.ID), zap.String("url", job.URL))
	start := o.deps.Clock.Now()

	o.transition(ctx, logger, job, audit.JobStatusFetchingData)
	report, err := o.deps.Auditor.Run(ctx, aggregator.Request{Target: job.URL, Keyword: job.Keyword})
	if err != nil {
		o.finish(ctx, logger, job, audit.JobStatusFailed, "Failed to fetch initial SEO data: "+err.Error())
		return
	}

	o.transition(ctx, logger, job, audit.JobStatusGeneratingText)
	raw, err := o.deps.Narrator.Generate(ctx, report)
	if err != nil {
		o.finish(ctx, logger, job, audit.JobStatusFailed, "Failed to generate the report text: "+err.Error())
		return
	}
	sections, err := narrative.ParseSections(raw)
	if err != nil {
		o.finish(ctx, logger, job, audit.JobStatusFailed, "Failed to generate the report text: "+err.Error())
		return
	}
	o.storeArtifacts(ctx, logger, job, report, sections)

	o.transition(ctx, logger, job, audit.JobStatusCreatingPresentation)
	deckURL, err := o.deps.Renderer.Render(ctx, sections.Slides)
	if err != nil {
		o.finish(ctx, logger, job, audit.JobStatusFailed, "Failed to create the presentation: "+err.Error())
		return
	}

	o.finish(ctx, logger, job, audit.JobStatusComplete, deckURL)
	logger.Info("job complete", zap.Duration("elapsed", o.deps.Clock.Now().Sub(start)))
}

func (o *Orchestrator) transition(ctx context.Context, logger *zap.Logger, job audit.Job, status audit.JobStatus) {
	if err := o.deps.Store.UpdateJobStatus(ctx, job.ID, status, ""); err != nil {
		logger.Error("update job status", zap.String("status", string(status)), zap.Error(err))
		return
	}
	logger.Info("job status", zap.String("status", string(status)))
}

func (o *Orchestrator) finish(ctx context.Context, logger *zap.Logger, job audit.Job, status audit.JobStatus, result string) {
	if err := o.deps.Store.UpdateJobStatus(ctx, job.ID, status, result); err != nil {
		logger.Error("update job status", zap.String("status", string(status)), zap.Error(err))
	}
	metrics.ObserveJob(string(status))
	if status == audit.JobStatusFailed {
		logger.Warn("job failed", zap.String("result", result))
	}

	job.Status = status
	job.Result = result
	o.notify(ctx, logger, job)
	if status == audit.JobStatusFailed && o.deps.Reporter != nil {
		o.deps.Reporter.ReportJobFailure(ctx, job)
	}
}

func (o *Orchestrator) notify(ctx context.Context, logger *zap.Logger, job audit.Job) {
	if o.deps.Publisher == nil || o.cfg.Topic == "" {
		return
	}
	msg := Notification{
		JobID:      job.ID,
		URL:        job.URL,
		Status:     job.Status,
		Result:     job.Result,
		FinishedAt: o.deps.Clock.Now(),
	}
	if _, err := o.deps.Publisher.Publish(ctx, o.cfg.Topic, msg); err != nil {
		logger.Warn("publish job notification", zap.Error(err))
	}
}

// storeArtifacts persists the audit, slide text and metrics. Failures are logged, not fatal.
func (o *Orchestrator) storeArtifacts(
	ctx context.Context,
	logger *zap.Logger,
	job audit.Job,
	report *aggregator.CombinedReport,
	sections narrative.Sections,
) {
	if o.deps.Blobs == nil {
		return
	}
	auditJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Warn("encode audit artifact", zap.Error(err))
		auditJSON = nil
	}
	artifacts := []struct {
		name        string
		path        string
		contentType string
		data        []byte
	}{
		{ArtifactAudit, job.ID + "/seo_audit.json", "application/json", auditJSON},
		{ArtifactSlides, job.ID + "/seo_report.md", "text/markdown; charset=utf-8", []byte(sections.Slides)},
		{ArtifactMetrics, job.ID + "/seo_metrics.json", "application/json", sections.Metrics},
	}
	for _, a := range artifacts {
		if a.data == nil {
			continue
		}
		uri, err := o.deps.Blobs.PutObject(ctx, a.path, a.contentType, bytes.NewReader(a.data))
		if err != nil {
			logger.Warn("store artifact", zap.String("artifact", a.name), zap.Error(err))
			continue
		}
		if err := o.deps.Store.RecordArtifact(ctx, job.ID, a.name, uri); err != nil {
			logger.Warn("record artifact", zap.String("artifact", a.name), zap.Error(err))
		}
	}
}

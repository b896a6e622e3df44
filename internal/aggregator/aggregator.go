// Package aggregator fans a target out to every source probe and merges the
// results into one report, tolerating per-source failures.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/seo-audit-service/internal/audit"
	"github.com/JakeFAU/seo-audit-service/internal/metrics"
	"github.com/JakeFAU/seo-audit-service/internal/probe/crawlability"
	"github.com/JakeFAU/seo-audit-service/internal/probe/onpage"
	"github.com/JakeFAU/seo-audit-service/internal/probe/pagespeed"
)

var (
	// ErrAllSourcesFailed is returned when no probe produced a payload.
	ErrAllSourcesFailed = errors.New("all audit sources failed")
	// ErrPartialFailure is returned in strict mode when at least one probe failed.
	ErrPartialFailure = errors.New("audit source failed")
)

// OnPageProbe analyses the rendered page.
type OnPageProbe interface {
	Run(ctx context.Context, target, keyword string) (*onpage.Report, error)
}

// CrawlabilityProbe inspects robots.txt and sitemaps.
type CrawlabilityProbe interface {
	Run(ctx context.Context, target string) (*crawlability.Report, error)
}

// PerformanceProbe scores page speed.
type PerformanceProbe interface {
	Run(ctx context.Context, target string, opts pagespeed.Options) (*pagespeed.Report, error)
}

// Request selects what to audit.
type Request struct {
	Target  string
	Keyword string
	// Refresh bypasses cached page-speed documents.
	Refresh bool
	// Strict turns any source failure into an error.
	Strict bool
}

// CombinedReport holds one entry per source: either its payload or its error message.
type CombinedReport struct {
	URL          string                  `json:"url"`
	OnPage       *onpage.Report          `json:"onpage,omitempty"`
	Crawlability *crawlability.Report    `json:"crawlability,omitempty"`
	Performance  *pagespeed.Report       `json:"performance,omitempty"`
	Errors       map[audit.Source]string `json:"errors,omitempty"`
	GeneratedAt  time.Time               `json:"generated_at"`
}

// Failed reports whether source ended with an error.
func (r *CombinedReport) Failed(source audit.Source) bool {
	_, ok := r.Errors[source]
	return ok
}

// Aggregator runs the three source probes for a target.
type Aggregator struct {
	onPage       OnPageProbe
	crawlability CrawlabilityProbe
	performance  PerformanceProbe
	clock        audit.Clock
	logger       *zap.Logger
}

// New builds an Aggregator.
func New(onPage OnPageProbe, crawl CrawlabilityProbe, perf PerformanceProbe, clock audit.Clock, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		onPage:       onPage,
		crawlability: crawl,
		performance:  perf,
		clock:        clock,
		logger:       logger,
	}
}

// Run normalizes the target, runs every probe concurrently and waits for all of
// them to settle. A best-effort report is always returned alongside
// ErrPartialFailure in strict mode; ErrAllSourcesFailed comes with no report.
func (a *Aggregator) Run(ctx context.Context, req Request) (*CombinedReport, error) {
	target, err := audit.NormalizeTarget(req.Target)
	if err != nil {
		return nil, err
	}

	var (
		onPageRes audit.Result[*onpage.Report]
		crawlRes  audit.Result[*crawlability.Report]
		perfRes   audit.Result[*pagespeed.Report]
		g         errgroup.Group
	)
	// Branches never return an error, so one failure cannot cancel the others.
	g.Go(func() error {
		onPageRes = settle(func() (*onpage.Report, error) {
			return a.onPage.Run(ctx, target, req.Keyword)
		})
		return nil
	})
	g.Go(func() error {
		crawlRes = settle(func() (*crawlability.Report, error) {
			return a.crawlability.Run(ctx, target)
		})
		return nil
	})
	g.Go(func() error {
		perfRes = settle(func() (*pagespeed.Report, error) {
			return a.performance.Run(ctx, target, pagespeed.Options{Refresh: req.Refresh})
		})
		return nil
	})
	_ = g.Wait()

	report := &CombinedReport{URL: target, GeneratedAt: a.clock.Now()}
	var errs []error
	record := func(source audit.Source, err error) {
		if err == nil {
			metrics.ObserveProbe(string(source), "success")
			return
		}
		metrics.ObserveProbe(string(source), "failure")
		if report.Errors == nil {
			report.Errors = make(map[audit.Source]string)
		}
		report.Errors[source] = err.Error()
		errs = append(errs, fmt.Errorf("%s: %w", source, err))
		a.logger.Warn("audit source failed",
			zap.String("url", target),
			zap.String("source", string(source)),
			zap.Error(err),
		)
	}

	if onPageRes.OK() {
		report.OnPage = onPageRes.Value
	}
	record(audit.SourceOnPage, onPageRes.Err)
	if crawlRes.OK() {
		report.Crawlability = crawlRes.Value
	}
	record(audit.SourceCrawlability, crawlRes.Err)
	if perfRes.OK() {
		report.Performance = perfRes.Value
	}
	record(audit.SourcePerformance, perfRes.Err)

	if report.OnPage != nil && report.Crawlability != nil {
		signals := crawlability.PageSignals{RobotsMeta: report.OnPage.RobotsMeta}
		if report.OnPage.Canonical != nil {
			signals.Canonical = *report.OnPage.Canonical
		}
		report.Crawlability.ApplyPageSignals(signals)
	}

	switch {
	case len(errs) == len(audit.Sources):
		return nil, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
	case len(errs) > 0 && req.Strict:
		return report, fmt.Errorf("%w: %w", ErrPartialFailure, errors.Join(errs...))
	default:
		return report, nil
	}
}

// settle runs fn and folds its outcome, including a panic or a nil payload, into a Result.
func settle[T any](fn func() (*T, error)) (res audit.Result[*T]) {
	defer func() {
		if r := recover(); r != nil {
			res = audit.Failure[*T](fmt.Errorf("probe panicked: %v", r))
		}
	}()
	v, err := fn()
	switch {
	case err != nil:
		return audit.Failure[*T](err)
	case v == nil:
		return audit.Failure[*T](errors.New("probe returned no result"))
	default:
		return audit.Success(v)
	}
}

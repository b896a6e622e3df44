package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit-service/internal/aggregator"
	"github.com/JakeFAU/seo-audit-service/internal/audit"
	"github.com/JakeFAU/seo-audit-service/internal/metrics"
	"github.com/JakeFAU/seo-audit-service/internal/orchestrator"
	"github.com/JakeFAU/seo-audit-service/internal/probe/pagespeed"
)

// DefaultRequestTimeout bounds synchronous handlers when Config leaves it unset.
const DefaultRequestTimeout = 5 * time.Minute

// Auditor runs every probe for a target.
type Auditor interface {
	Run(ctx context.Context, req aggregator.Request) (*aggregator.CombinedReport, error)
}

// Jobs starts and looks up report jobs.
type Jobs interface {
	Submit(ctx context.Context, req orchestrator.SubmitRequest) (audit.Job, error)
	Status(ctx context.Context, jobID string) (audit.Job, error)
}

// ReadyFunc reports whether a downstream dependency can serve traffic.
type ReadyFunc func(ctx context.Context) error

// Deps are the collaborators behind the routes.
type Deps struct {
	OnPage       aggregator.OnPageProbe
	Crawlability aggregator.CrawlabilityProbe
	Performance  aggregator.PerformanceProbe
	Auditor      Auditor
	Jobs         Jobs
	// Ready is optional; nil means always ready.
	Ready  ReadyFunc
	Logger *zap.Logger
}

// Config tunes the HTTP surface.
type Config struct {
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the probes and the job orchestrator.
type Server struct {
	router chi.Router
	deps   Deps
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	s := &Server{deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/", s.root)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(cfg.RequestTimeout))
		r.Get("/onpage", s.onPage)
		r.Get("/crawl", s.crawl)
		r.Get("/performance", s.performance)
		r.Get("/pagespeed", s.performance)
		r.Get("/audit", s.audit)
	})

	r.Post("/generate-report", s.generateReport)
	r.Get("/report-status/{job_id}", s.reportStatus)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "seo-audit"})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) onPage(w http.ResponseWriter, r *http.Request) {
	target, ok := targetParam(w, r)
	if !ok {
		return
	}
	report, err := s.deps.OnPage.Run(r.Context(), target, strings.TrimSpace(r.URL.Query().Get("keyword")))
	if err != nil {
		s.logger.Warn("onpage probe failed", zap.String("url", target), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"onpage": report})
}

func (s *Server) crawl(w http.ResponseWriter, r *http.Request) {
	target, ok := targetParam(w, r)
	if !ok {
		return
	}
	report, err := s.deps.Crawlability.Run(r.Context(), target)
	if err != nil {
		s.logger.Warn("crawlability probe failed", zap.String("url", target), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) performance(w http.ResponseWriter, r *http.Request) {
	target, ok := targetParam(w, r)
	if !ok {
		return
	}
	refresh, err := boolParam(r, "refresh", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tolerate, err := boolParam(r, "tolerate_failures", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.deps.Performance.Run(r.Context(), target, pagespeed.Options{Refresh: refresh, Strict: !tolerate})
	if err != nil {
		s.logger.Warn("pagespeed probe failed", zap.String("url", target), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) audit(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	refresh, err := boolParam(r, "refresh", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	strict, err := boolParam(r, "strict", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.deps.Auditor.Run(r.Context(), aggregator.Request{
		Target:  raw,
		Keyword: strings.TrimSpace(r.URL.Query().Get("keyword")),
		Refresh: refresh,
		Strict:  strict,
	})
	switch {
	case errors.Is(err, audit.ErrInvalidTarget):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

type generateReportRequest struct {
	URL     string `json:"url"`
	Keyword string `json:"keyword"`
}

func (s *Server) generateReport(w http.ResponseWriter, r *http.Request) {
	var req generateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	job, err := s.deps.Jobs.Submit(r.Context(), orchestrator.SubmitRequest{URL: req.URL, Keyword: req.Keyword})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, audit.ErrInvalidTarget) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

type reportStatusResponse struct {
	Status audit.JobStatus `json:"status"`
	Result *string         `json:"result"`
}

func (s *Server) reportStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Jobs.Status(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := reportStatusResponse{Status: job.Status}
	if job.Result != "" {
		resp.Result = &job.Result
	}
	writeJSON(w, http.StatusOK, resp)
}

// targetParam normalizes the url query parameter, answering 400 itself when it is unusable.
func targetParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return "", false
	}
	target, err := audit.NormalizeTarget(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return target, true
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

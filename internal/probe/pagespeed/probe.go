// Package pagespeed runs the page-speed scoring pass for the mobile and
// desktop strategies and shapes the upstream documents into a report.
package pagespeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/seo-audit-service/internal/audit"
	"github.com/JakeFAU/seo-audit-service/internal/metrics"
	"github.com/JakeFAU/seo-audit-service/internal/retryhttp"
)

// DefaultEndpoint is the public scoring API.
const DefaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

// DefaultCategories is the fixed superset of categories requested for every strategy.
var DefaultCategories = []string{"performance", "seo", "accessibility", "best-practices"}

// ErrMissingAPIKey is returned before any cache or network access when no key is configured.
var ErrMissingAPIKey = errors.New("pagespeed API key not set: export GOOGLE_API_KEY")

// ErrAllStrategiesFailed wraps the combined error when no strategy succeeded.
var ErrAllStrategiesFailed = errors.New("all pagespeed strategies failed")

// Cache stores raw upstream documents.
type Cache interface {
	Get(ctx context.Context, target, variant string) ([]byte, bool, error)
	Put(ctx context.Context, target, variant string, payload []byte) error
}

// Doer executes an upstream request with retries.
type Doer interface {
	Do(ctx context.Context, req retryhttp.Request) (retryhttp.Response, error)
}

// Config configures the probe.
type Config struct {
	APIKey     string
	Endpoint   string
	Categories []string
}

// Options are per-call switches.
type Options struct {
	// Refresh bypasses the cache and overwrites it on success.
	Refresh bool
	// Strict turns any failed strategy into an error.
	Strict bool
}

// Probe runs both strategies against the scoring API.
type Probe struct {
	cfg    Config
	client Doer
	cache  Cache
	clock  audit.Clock
	logger *zap.Logger
}

// New constructs a Probe. cache may be nil to disable caching.
func New(cfg Config, client Doer, cache Cache, clock audit.Clock, logger *zap.Logger) *Probe {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultCategories
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{cfg: cfg, client: client, cache: cache, clock: clock, logger: logger}
}

// Run scores target with every strategy. Strategies fail independently: the
// report holds each success and an error entry per failure. An error is
// returned only when every strategy failed, or when opts.Strict is set and any failed.
func (p *Probe) Run(ctx context.Context, target string, opts Options) (*Report, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	results := make([]audit.Result[StrategyReport], len(Strategies))
	var g errgroup.Group
	for i, strategy := range Strategies {
		g.Go(func() error {
			block, err := p.runStrategy(ctx, target, strategy, opts.Refresh)
			if err != nil {
				results[i] = audit.Failure[StrategyReport](err)
				return nil
			}
			results[i] = audit.Success(block)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		URL:       target,
		PageSpeed: make(map[Strategy]StrategyReport, len(Strategies)),
		FetchedAt: p.clock.Now(),
	}
	var errs []error
	for i, strategy := range Strategies {
		if results[i].OK() {
			report.PageSpeed[strategy] = results[i].Value
			continue
		}
		if report.Errors == nil {
			report.Errors = make(map[Strategy]string)
		}
		report.Errors[strategy] = results[i].Err.Error()
		errs = append(errs, fmt.Errorf("%s: %w", strategy, results[i].Err))
		p.logger.Warn("pagespeed strategy failed",
			zap.String("url", target),
			zap.String("strategy", string(strategy)),
			zap.Error(results[i].Err),
		)
	}

	switch {
	case len(errs) == len(Strategies):
		return nil, fmt.Errorf("%w: %w", ErrAllStrategiesFailed, errors.Join(errs...))
	case len(errs) > 0 && opts.Strict:
		return report, errors.Join(errs...)
	default:
		return report, nil
	}
}

func (p *Probe) runStrategy(ctx context.Context, target string, strategy Strategy, refresh bool) (StrategyReport, error) {
	raw, err := p.fetch(ctx, target, strategy, refresh)
	if err != nil {
		return StrategyReport{}, err
	}
	block, err := Extract(raw)
	if err != nil {
		return StrategyReport{}, fmt.Errorf("PSI %s: %w", strategy, err)
	}
	return block, nil
}

// fetch returns the raw document through the cache. Only a successful upstream
// call writes the cache, so a failed refresh keeps the previous entry.
func (p *Probe) fetch(ctx context.Context, target string, strategy Strategy, refresh bool) ([]byte, error) {
	variant := string(strategy)
	if p.cache != nil && !refresh {
		data, ok, err := p.cache.Get(ctx, target, variant)
		switch {
		case err != nil:
			p.logger.Warn("pagespeed cache read failed", zap.String("url", target), zap.Error(err))
		case ok && json.Valid(data):
			metrics.ObserveCache("hit")
			return data, nil
		case ok:
			p.logger.Warn("ignoring corrupt pagespeed cache entry", zap.String("url", target), zap.String("strategy", variant))
		}
	}
	if refresh {
		metrics.ObserveCache("refresh")
	} else {
		metrics.ObserveCache("miss")
	}

	resp, err := p.client.Do(ctx, retryhttp.Request{URL: p.requestURL(target, strategy)})
	if err != nil {
		return nil, fmt.Errorf("PSI %s %w", strategy, err)
	}
	if !json.Valid(resp.Body) {
		return nil, fmt.Errorf("PSI %s: malformed response body", strategy)
	}
	if p.cache != nil {
		if err := p.cache.Put(ctx, target, variant, resp.Body); err != nil {
			p.logger.Warn("pagespeed cache write failed", zap.String("url", target), zap.Error(err))
		}
	}
	return resp.Body, nil
}

func (p *Probe) requestURL(target string, strategy Strategy) string {
	params := url.Values{}
	params.Set("url", target)
	params.Set("strategy", string(strategy))
	params.Set("key", p.cfg.APIKey)
	for _, c := range p.cfg.Categories {
		params.Add("category", c)
	}
	sep := "?"
	if strings.Contains(p.cfg.Endpoint, "?") {
		sep = "&"
	}
	return p.cfg.Endpoint + sep + params.Encode()
}

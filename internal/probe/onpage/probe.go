// Package onpage extracts on-page SEO signals from a page's rendered HTML.
package onpage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit-service/internal/audit"
)

// Render modes reported in Report.RenderedWith.
const (
	RenderedStatic   = "static"
	RenderedHeadless = "headless"
)

// Config controls how pages are loaded.
type Config struct {
	// AlwaysRender sends every page through the headless browser when one is configured.
	AlwaysRender bool
}

// Probe loads a page and extracts on-page signals from it.
type Probe struct {
	cfg      Config
	static   audit.Fetcher
	headless audit.Fetcher
	detector audit.HeadlessDetector
	logger   *zap.Logger
}

// New builds a Probe. headless and detector may be nil, in which case pages are
// only loaded statically.
func New(cfg Config, static, headless audit.Fetcher, detector audit.HeadlessDetector, logger *zap.Logger) *Probe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{cfg: cfg, static: static, headless: headless, detector: detector, logger: logger}
}

// Run loads target and analyses it for keyword (empty for top-terms mode).
// Error pages are analysed like any other; their status is carried in the report.
func (p *Probe) Run(ctx context.Context, target, keyword string) (*Report, error) {
	resp, err := p.load(ctx, target)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.Warn("page answered with non-success status",
			zap.String("url", target), zap.Int("status", resp.StatusCode))
	}
	report, err := extract(target, resp.URL, resp.Body, keyword)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", target, err)
	}
	report.StatusCode = resp.StatusCode
	report.RenderedWith = RenderedStatic
	if resp.UsedHeadless {
		report.RenderedWith = RenderedHeadless
	}
	return report, nil
}

// load renders through the browser when forced, otherwise fetches statically and
// promotes to the browser when the detector asks for it. A failed render falls
// back to the static response.
func (p *Probe) load(ctx context.Context, target string) (audit.FetchResponse, error) {
	req := audit.FetchRequest{URL: target}

	if p.cfg.AlwaysRender && p.headless != nil {
		resp, err := p.headless.Fetch(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return audit.FetchResponse{}, fmt.Errorf("render %s: %w", target, err)
		}
		p.logger.Warn("headless render failed, using static fetch", zap.String("url", target), zap.Error(err))
		return p.fetchStatic(ctx, req)
	}

	resp, err := p.fetchStatic(ctx, req)
	if err != nil {
		return audit.FetchResponse{}, err
	}
	if p.headless == nil || p.detector == nil || !p.detector.ShouldPromote(resp) {
		return resp, nil
	}
	p.logger.Debug("promoting page to headless render", zap.String("url", target))
	rendered, err := p.headless.Fetch(ctx, req)
	if err != nil {
		p.logger.Warn("headless render failed, keeping static response", zap.String("url", target), zap.Error(err))
		return resp, nil
	}
	return rendered, nil
}

func (p *Probe) fetchStatic(ctx context.Context, req audit.FetchRequest) (audit.FetchResponse, error) {
	if p.static == nil {
		return audit.FetchResponse{}, errors.New("no static fetcher configured")
	}
	resp, err := p.static.Fetch(ctx, req)
	if err != nil {
		return audit.FetchResponse{}, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	return resp, nil
}

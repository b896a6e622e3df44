// Package crawlability inspects robots.txt and sitemaps for a target and
// judges whether the page can be indexed.
package crawlability

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit-service/internal/retryhttp"
)

// DefaultURLCap bounds the number of sitemap URLs sampled.
const DefaultURLCap = 50

// DefaultUserAgent is a browser-like agent; some hosts reject unknown bots.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Doer executes an upstream request with retries.
type Doer interface {
	Do(ctx context.Context, req retryhttp.Request) (retryhttp.Response, error)
}

// Config configures the probe.
type Config struct {
	UserAgent string
	// RobotsAgent selects the robots.txt group; "*" means the wildcard group.
	RobotsAgent string
	URLCap      int
}

// Probe fetches robots.txt and sitemaps.
type Probe struct {
	cfg    Config
	client Doer
	logger *zap.Logger
}

// New constructs a Probe.
func New(cfg Config, client Doer, logger *zap.Logger) *Probe {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.RobotsAgent == "" {
		cfg.RobotsAgent = "*"
	}
	if cfg.URLCap <= 0 {
		cfg.URLCap = DefaultURLCap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{cfg: cfg, client: client, logger: logger}
}

// Run inspects target. Missing or unreadable robots.txt is treated as allow-all
// and unreadable sitemaps are skipped, so only an unusable target is an error.
func (p *Probe) Run(ctx context.Context, target string) (*Report, error) {
	base, err := url.Parse(target)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("parse target %q: invalid url", target)
	}

	robots, rules := p.inspectRobots(ctx, base)
	info := p.collectSitemaps(ctx, base, rules.Sitemaps)

	report := &Report{
		URL:         target,
		RobotsTxt:   robots,
		SitemapInfo: info,
	}
	report.evaluate(nil)
	return report, nil
}

func (p *Probe) inspectRobots(ctx context.Context, base *url.URL) (RobotsSummary, RobotsRules) {
	allowAll := RobotsSummary{Allows: true, Disallows: []string{}, TargetAllowed: true}
	robotsURL := resolve(base, "/robots.txt")

	resp, err := p.get(ctx, robotsURL)
	if err != nil {
		p.logger.Debug("robots.txt unavailable, assuming allow-all",
			zap.String("url", robotsURL), zap.Error(err))
		return allowAll, RobotsRules{}
	}

	rules, err := ParseRobots(resp.Body, p.cfg.RobotsAgent)
	if err != nil {
		p.logger.Warn("robots.txt only partially parsed", zap.String("url", robotsURL), zap.Error(err))
	}
	summary := RobotsSummary{
		Found:         true,
		Allows:        len(rules.Disallows) == 0,
		Disallows:     rules.Disallows,
		TargetAllowed: true,
	}
	if data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body); err == nil {
		summary.TargetAllowed = data.TestAgent(requestPath(base), p.cfg.RobotsAgent)
	} else {
		p.logger.Debug("robots.txt not parseable for path test", zap.String("url", robotsURL), zap.Error(err))
	}
	return summary, rules
}

// collectSitemaps reads declared sitemaps (or the default location), descending
// one level into sitemap indexes, until the URL cap is reached.
func (p *Probe) collectSitemaps(ctx context.Context, base *url.URL, declared []string) SitemapInfo {
	var locations []string
	seen := map[string]struct{}{}
	for _, d := range declared {
		loc := resolve(base, d)
		if _, dup := seen[loc]; dup {
			continue
		}
		seen[loc] = struct{}{}
		locations = append(locations, loc)
	}
	if len(locations) == 0 {
		locations = []string{resolve(base, "/sitemap.xml")}
	}

	info := SitemapInfo{SitemapsChecked: locations, SitemapURLs: []string{}}
	for _, loc := range locations {
		if len(info.SitemapURLs) >= p.cfg.URLCap {
			break
		}
		kind, entries, err := p.fetchSitemap(ctx, loc)
		if err != nil {
			p.logger.Debug("skipping sitemap", zap.String("url", loc), zap.Error(err))
			continue
		}
		switch kind {
		case sitemapURLSet:
			info.SitemapURLs = p.appendCapped(info.SitemapURLs, entries)
		case sitemapIndex:
			for _, child := range entries {
				if len(info.SitemapURLs) >= p.cfg.URLCap {
					break
				}
				childKind, urls, err := p.fetchSitemap(ctx, child)
				if err != nil || childKind != sitemapURLSet {
					p.logger.Debug("skipping nested sitemap", zap.String("url", child), zap.Error(err))
					continue
				}
				info.SitemapURLs = p.appendCapped(info.SitemapURLs, urls)
			}
		}
	}
	return info
}

func (p *Probe) fetchSitemap(ctx context.Context, loc string) (sitemapKind, []string, error) {
	resp, err := p.get(ctx, loc)
	if err != nil {
		return sitemapUnknown, nil, err
	}
	return parseSitemap(resp.Body)
}

func (p *Probe) appendCapped(dst, src []string) []string {
	for _, u := range src {
		if len(dst) >= p.cfg.URLCap {
			break
		}
		dst = append(dst, u)
	}
	return dst
}

func (p *Probe) get(ctx context.Context, rawURL string) (retryhttp.Response, error) {
	header := http.Header{}
	header.Set("User-Agent", p.cfg.UserAgent)
	header.Set("Cache-Control", "no-cache")
	header.Set("Pragma", "no-cache")
	resp, err := p.client.Do(ctx, retryhttp.Request{Method: http.MethodGet, URL: rawURL, Header: header})
	if err != nil {
		return retryhttp.Response{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return resp, nil
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func requestPath(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

package crawlability

import (
	"net/url"
	"strings"
)

// Consistency is the canonical-vs-sitemap verdict.
type Consistency string

// Consistency verdicts.
const (
	Matches          Consistency = "Matches"
	Mismatch         Consistency = "Mismatch"
	InsufficientData Consistency = "Insufficient data"
)

// Overall indexability statuses.
const (
	StatusFullyIndexable = "Fully Indexable"
	StatusIssuesFound    = "Issues Found"
)

// Notes attached to a report for each detected issue.
const (
	NoteBlockedByRobots   = "robots.txt disallows crawling the target URL"
	NoteNoSitemap         = "No sitemap found, or the sitemap lists no URLs"
	NoteCanonicalMismatch = "Canonical URL does not match the first sitemap URL"
	NoteNoIndex           = "Page robots meta tag contains noindex"
)

// RobotsSummary describes robots.txt as it applies to the audited agent.
type RobotsSummary struct {
	Found         bool     `json:"found"`
	Allows        bool     `json:"allows"`
	Disallows     []string `json:"disallows"`
	TargetAllowed bool     `json:"target_allowed"`
}

// SitemapInfo lists the sitemap documents tried and the URLs sampled from them.
type SitemapInfo struct {
	SitemapsChecked []string `json:"sitemaps_checked"`
	SitemapURLs     []string `json:"sitemap_urls"`
}

// PageSignals are the on-page facts used to cross-check crawlability.
type PageSignals struct {
	Canonical  string
	RobotsMeta string
}

// Report is the crawlability result for one target.
type Report struct {
	URL                  string        `json:"url"`
	RobotsTxt            RobotsSummary `json:"robots_txt"`
	SitemapInfo          SitemapInfo   `json:"sitemap_info"`
	CanonicalConsistency Consistency   `json:"canonical_consistency"`
	Status               string        `json:"status"`
	Notes                []string      `json:"notes"`
}

// ApplyPageSignals recomputes the canonical verdict, status and notes with on-page data.
func (r *Report) ApplyPageSignals(signals PageSignals) {
	r.evaluate(&signals)
}

func (r *Report) evaluate(signals *PageSignals) {
	r.CanonicalConsistency = InsufficientData
	if signals != nil {
		r.CanonicalConsistency = CanonicalConsistency(r.URL, signals.Canonical, r.SitemapInfo.SitemapURLs)
	}

	notes := []string{}
	if !r.RobotsTxt.TargetAllowed {
		notes = append(notes, NoteBlockedByRobots)
	}
	if len(r.SitemapInfo.SitemapURLs) == 0 {
		notes = append(notes, NoteNoSitemap)
	}
	if r.CanonicalConsistency == Mismatch {
		notes = append(notes, NoteCanonicalMismatch)
	}
	if signals != nil && strings.Contains(strings.ToLower(signals.RobotsMeta), "noindex") {
		notes = append(notes, NoteNoIndex)
	}
	r.Notes = notes
	if len(notes) == 0 {
		r.Status = StatusFullyIndexable
	} else {
		r.Status = StatusIssuesFound
	}
}

// CanonicalConsistency compares the first sampled sitemap URL with the page's
// canonical URL (resolved against target) after trailing-slash normalization.
func CanonicalConsistency(target, canonical string, sitemapURLs []string) Consistency {
	canonical = strings.TrimSpace(canonical)
	if canonical == "" || len(sitemapURLs) == 0 {
		return InsufficientData
	}
	if base, err := url.Parse(target); err == nil {
		if ref, err := url.Parse(canonical); err == nil {
			canonical = base.ResolveReference(ref).String()
		}
	}
	if strings.TrimRight(canonical, "/") == strings.TrimRight(sitemapURLs[0], "/") {
		return Matches
	}
	return Mismatch
}

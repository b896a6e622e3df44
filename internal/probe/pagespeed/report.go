package pagespeed

import "time"

// Strategy is the device profile the scoring pass emulates.
type Strategy string

// Supported strategies.
const (
	Mobile  Strategy = "mobile"
	Desktop Strategy = "desktop"
)

// Strategies lists every strategy in request order.
var Strategies = []Strategy{Mobile, Desktop}

// Label classifies a web vital.
type Label string

// Vital labels.
const (
	Good             Label = "good"
	NeedsImprovement Label = "needs_improvement"
	Poor             Label = "poor"
)

// Scores holds per-category scores on a 0-100 scale.
type Scores struct {
	Performance   int `json:"performance"`
	SEO           int `json:"seo"`
	Accessibility int `json:"accessibility"`
	BestPractices int `json:"best_practices"`
}

// VitalLabels classifies each lab vital; nil when the vital is missing.
type VitalLabels struct {
	LCP *Label `json:"lcp"`
	INP *Label `json:"inp"`
	CLS *Label `json:"cls"`
}

// LabVitals are the lab web-vital measurements of one strategy.
type LabVitals struct {
	LCPMs  *int        `json:"lcp_ms"`
	INPMs  *int        `json:"inp_ms"`
	CLS    *float64    `json:"cls"`
	Labels VitalLabels `json:"labels"`
}

// StrategyReport is the shaped result of one strategy.
type StrategyReport struct {
	Scores           Scores    `json:"scores"`
	LabCWV           LabVitals `json:"lab_cwv"`
	TopOpportunities []string  `json:"top_opportunities"`
}

// Report merges every strategy that succeeded; failed strategies are listed in Errors.
type Report struct {
	URL       string                      `json:"url"`
	PageSpeed map[Strategy]StrategyReport `json:"pagespeed"`
	FetchedAt time.Time                   `json:"fetched_at"`
	Errors    map[Strategy]string         `json:"errors,omitempty"`
}

// ClassifyLCP labels a largest-render time in milliseconds.
func ClassifyLCP(ms *float64) *Label {
	return classify(ms, 2500, 4000)
}

// ClassifyINP labels an interaction latency in milliseconds.
func ClassifyINP(ms *float64) *Label {
	return classify(ms, 200, 500)
}

// ClassifyCLS labels a layout-shift score.
func ClassifyCLS(v *float64) *Label {
	return classify(v, 0.10, 0.25)
}

func classify(v *float64, good, needsImprovement float64) *Label {
	if v == nil {
		return nil
	}
	var l Label
	switch {
	case *v <= good:
		l = Good
	case *v <= needsImprovement:
		l = NeedsImprovement
	default:
		l = Poor
	}
	return &l
}

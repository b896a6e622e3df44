package narrative

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Section markers the model is instructed to emit.
const (
	SlidesStart  = "### SLIDES START"
	SlidesEnd    = "### SLIDES END"
	MetricsStart = "### METRICS START"
	MetricsEnd   = "### METRICS END"
)

const promptTemplate = `# ROLE & GOAL
You are an expert SEO analyst. Your only task is to write a structured report from the JSON data below. Follow every formatting rule exactly.

# CRITICAL RULES
- Begin the slides with the line ` + "`" + SlidesStart + "`" + `.
- End the slides with the line ` + "`" + SlidesEnd + "`" + `.
- After the slides, emit a JSON object with the headline numbers between ` + "`" + MetricsStart + "`" + ` and ` + "`" + MetricsEnd + "`" + `.
- Separate slides with a line containing only ` + "`---`" + `.
- Only use facts present in the JSON input. Sources listed under "errors" were unavailable; say so instead of guessing.

# SLIDE OUTLINE
## Slide 1: Executive Summary & Overall SEO Health
- Overall posture, mobile and desktop performance scores, crawlability and on-page highlights.
- Main strength and the biggest growth opportunity.
*Key Takeaway*: one sentence on the current state and potential.

## Slide 2: Core Web Vitals & Performance (Mobile-First)
- Mobile performance, accessibility and SEO scores.
- LCP, INP and CLS with their labels, and concrete technical fixes.
*Key Takeaway*: urgency and impact of mobile performance.

## Slide 3: Desktop User Experience & Performance
- Desktop scores compared directly with mobile, and likely causes of any gap.
*Key Takeaway*: whether desktop is a strength or a liability.

## Slide 4: Crawlability & Technical SEO
- Indexability status, robots.txt blocks and their impact, sitemap coverage, canonical consistency.
*Key Takeaway*: whether the technical foundation is solid.

## Slide 5: On-Page Content & Meta Tags
- Word count, title and meta description quality, heading structure, image alt coverage.
*Key Takeaway*: whether on-page content is well structured.

## Slide 6: Keyword Landscape
- Focus keyword usage or the top terms with their frequency, and targeting recommendations.
*Key Takeaway*: how well content matches search intent.

## Slide 7: Link Profile Analysis
- Internal and external link counts and what they mean for authority flow.
*Key Takeaway*: health of the linking strategy.

## Slide 8: Priority Recommendations & Next Steps
- A prioritized action list: high impact first, then medium impact.
*Key Takeaway*: a closing call to action.

# JSON INPUT
%s
`

// BuildPrompt renders the slide-writing prompt around the indented JSON form of summary.
func BuildPrompt(summary any) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode audit summary: %w", err)
	}
	return fmt.Sprintf(promptTemplate, data), nil
}

// Sections are the parts of a model response the pipeline consumes.
type Sections struct {
	Slides string
	// Metrics is the JSON object between the metrics markers, or {} when absent or invalid.
	Metrics json.RawMessage
}

// ParseSections extracts the slide and metrics sections. A start marker
// without its end marker takes the rest of the text.
func ParseSections(raw string) (Sections, error) {
	sections := Sections{Metrics: json.RawMessage(`{}`)}
	slides, ok := between(raw, SlidesStart, SlidesEnd)
	if !ok || slides == "" {
		return sections, ErrNoSlides
	}
	// The metrics block may be emitted inside the unterminated slides tail.
	if idx := strings.Index(slides, MetricsStart); idx >= 0 {
		slides = strings.TrimSpace(slides[:idx])
	}
	sections.Slides = slides

	if metrics, ok := between(raw, MetricsStart, MetricsEnd); ok {
		metrics = stripFence(metrics)
		var obj map[string]any
		if err := json.Unmarshal([]byte(metrics), &obj); err == nil && obj != nil {
			sections.Metrics = json.RawMessage(metrics)
		}
	}
	return sections, nil
}

func between(raw, start, end string) (string, bool) {
	_, rest, found := strings.Cut(raw, start)
	if !found {
		return "", false
	}
	if body, _, closed := strings.Cut(rest, end); closed {
		return strings.TrimSpace(body), true
	}
	return strings.TrimSpace(rest), true
}

// stripFence removes a surrounding markdown code fence such as ```json ... ```.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	_, s, _ = strings.Cut(s, "\n")
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// Package detector decides when a statically fetched page must be rendered in a browser.
package detector

import (
	"bytes"
	"net/http"

	"golang.org/x/net/html"

	"github.com/JakeFAU/seo-audit-service/internal/audit"
)

// DefaultBodyThreshold is the body size under which script-heavy pages are rendered.
const DefaultBodyThreshold = 2048

// scriptShare is the percentage of bytes inside <script> above which a small page counts as a shell.
const scriptShare = 25

// Heuristic promotes pages that look like client-rendered application shells.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector. A zero threshold selects DefaultBodyThreshold.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = DefaultBodyThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte(`id="__next"`),
	[]byte(`id="__nuxt"`),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

var _ audit.HeadlessDetector = (*Heuristic)(nil)

// ShouldPromote reports whether resp is too thin to audit without JavaScript.
// Only successful responses are considered.
func (h *Heuristic) ShouldPromote(resp audit.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	body := resp.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	stats := scan(body)
	if stats.textBytes == 0 {
		return true
	}
	if len(body) < h.BodyLengthThreshold && stats.scriptBytes*100 >= scriptShare*len(body) {
		return true
	}
	if !stats.hasTitle && !stats.hasHeading {
		for _, marker := range spaMarkers {
			if bytes.Contains(body, marker) {
				return true
			}
		}
	}
	return false
}

type pageStats struct {
	scriptBytes int
	textBytes   int
	hasTitle    bool
	hasHeading  bool
}

// scan walks the token stream once, measuring script payload and visible text.
func scan(body []byte) pageStats {
	var (
		stats    pageStats
		inScript bool
		inTitle  bool
		skip     int
	)
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return stats
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script":
				inScript = true
				stats.scriptBytes += len(z.Raw())
			case "style", "noscript", "template":
				skip++
			case "title":
				inTitle = true
			case "h1", "h2":
				stats.hasHeading = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script":
				inScript = false
				stats.scriptBytes += len(z.Raw())
			case "style", "noscript", "template":
				if skip > 0 {
					skip--
				}
			case "title":
				inTitle = false
			}
		case html.TextToken:
			text := z.Text()
			switch {
			case inScript:
				stats.scriptBytes += len(text)
			case skip > 0:
			case inTitle:
				if len(bytes.TrimSpace(text)) > 0 {
					stats.hasTitle = true
				}
			default:
				stats.textBytes += len(bytes.TrimSpace(text))
			}
		}
	}
}

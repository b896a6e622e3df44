package onpage

import (
	"bytes"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// skippedTextTags never contribute to visible page text.
var skippedTextTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
}

// Extract analyses rendered HTML for pageURL. An empty keyword selects top-terms mode.
func Extract(pageURL string, body []byte, keyword string) (*Report, error) {
	return extract(pageURL, "", body, keyword)
}

// extract resolves links against finalURL, the address the page was served
// from after redirects, falling back to pageURL when it is empty.
func extract(pageURL, finalURL string, body []byte, keyword string) (*Report, error) {
	requested, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	base := requested
	if finalURL != "" {
		if served, err := url.Parse(finalURL); err == nil && served.Host != "" {
			base = served
		}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	report := &Report{
		URL:        pageURL,
		RobotsMeta: DefaultRobotsMeta,
		Headings: Headings{
			H1: headingText(doc, "h1"),
			H2: headingText(doc, "h2"),
			H3: headingText(doc, "h3"),
		},
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		status := classifyTitle(title)
		report.Title = &title
		report.TitleStatus = &status
	}
	if desc, ok := metaContent(doc, "description"); ok && desc != "" {
		report.MetaDescription = &desc
	}
	if robots, ok := metaContent(doc, "robots"); ok && robots != "" {
		report.RobotsMeta = robots
	}
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		canonical := strings.TrimSpace(href)
		report.Canonical = &canonical
	}

	report.AltAudit = auditImages(doc)
	report.InternalLinks, report.ExternalLinks = partitionLinks(doc, base, requested)

	text := visibleText(doc.Nodes...)
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	report.WordCount = len(words)

	if kw := strings.TrimSpace(keyword); kw != "" {
		report.KeywordAnalysis = focusOn(kw, text, len(words), report)
	} else {
		report.KeywordAnalysis = topTerms(words, report)
	}
	return report, nil
}

func classifyTitle(title string) string {
	switch n := utf8.RuneCountInString(title); {
	case n < 30:
		return TitleTooShort
	case n > 60:
		return TitleTooLong
	default:
		return TitleGood
	}
}

// metaContent finds <meta name=...> matching name case-insensitively.
func metaContent(doc *goquery.Document, name string) (string, bool) {
	var (
		content string
		found   bool
	)
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(s.AttrOr("name", "")), name) {
			return true
		}
		content, found = s.Attr("content")
		content = strings.TrimSpace(content)
		return false
	})
	return content, found
}

func headingText(doc *goquery.Document, tag string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		out = append(out, text)
	})
	return out
}

// auditImages counts images with a src but no alt text.
func auditImages(doc *goquery.Document) AltAudit {
	imgs := doc.Find("img")
	audit := AltAudit{TotalImages: imgs.Length()}
	imgs.Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		alt := strings.TrimSpace(s.AttrOr("alt", ""))
		if src != "" && alt == "" {
			audit.MissingAltCount++
		}
	})
	if audit.TotalImages > 0 {
		audit.MissingAltPercent = round2(float64(audit.MissingAltCount) / float64(audit.TotalImages) * 100)
	}
	return audit
}

// partitionLinks resolves every anchor against base and counts it as internal
// when it stays on the site of base or of any of the extra URLs. Subdomains and
// the www. variant belong to the site. Non-navigational schemes such as mailto:
// and javascript: are ignored.
func partitionLinks(doc *goquery.Document, base *url.URL, extra ...*url.URL) (internal, external int) {
	sites := []string{siteKey(base.Hostname())}
	for _, u := range extra {
		if u != nil && u.Hostname() != "" {
			sites = append(sites, siteKey(u.Hostname()))
		}
	}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		ref, err := url.Parse(strings.TrimSpace(s.AttrOr("href", "")))
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if onSite(siteKey(resolved.Hostname()), sites) {
			internal++
		} else {
			external++
		}
	})
	return internal, external
}

func siteKey(host string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSuffix(host, ".")), "www.")
}

func onSite(host string, sites []string) bool {
	if host == "" {
		return false
	}
	for _, site := range sites {
		if site != "" && (host == site || strings.HasSuffix(host, "."+site)) {
			return true
		}
	}
	return false
}

// visibleText joins trimmed text nodes with single spaces, skipping script-like elements.
func visibleText(nodes ...*html.Node) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skippedTextTags[n.Data]; skip {
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

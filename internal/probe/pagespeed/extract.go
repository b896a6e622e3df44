package pagespeed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

const maxOpportunities = 5

type psiDocument struct {
	LighthouseResult struct {
		Categories map[string]*category `json:"categories"`
		Audits     json.RawMessage      `json:"audits"`
	} `json:"lighthouseResult"`
}

type category struct {
	Score *float64 `json:"score"`
}

type auditEntry struct {
	Title        string          `json:"title"`
	NumericValue *float64        `json:"numericValue"`
	Details      json.RawMessage `json:"details"`
}

type auditDetails struct {
	Type             string   `json:"type"`
	OverallSavingsMs *float64 `json:"overallSavingsMs"`
}

type namedAudit struct {
	key   string
	entry auditEntry
}

// Extract shapes one raw scoring document into a StrategyReport.
func Extract(raw []byte) (StrategyReport, error) {
	var doc psiDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return StrategyReport{}, fmt.Errorf("decode scoring document: %w", err)
	}
	audits, err := decodeAudits(doc.LighthouseResult.Audits)
	if err != nil {
		return StrategyReport{}, err
	}
	byKey := make(map[string]auditEntry, len(audits))
	for _, a := range audits {
		byKey[a.key] = a.entry
	}

	cats := doc.LighthouseResult.Categories
	report := StrategyReport{
		Scores: Scores{
			Performance:   score(cats, "performance"),
			SEO:           score(cats, "seo"),
			Accessibility: score(cats, "accessibility"),
			BestPractices: score(cats, "best-practices"),
		},
		TopOpportunities: topOpportunities(audits),
	}

	lcp := byKey["largest-contentful-paint"].NumericValue
	cls := byKey["cumulative-layout-shift"].NumericValue
	var inp *float64
	if entry, ok := byKey["interaction-to-next-paint"]; ok {
		inp = entry.NumericValue
	} else if entry, ok := byKey["experimental-interaction-to-next-paint"]; ok {
		inp = entry.NumericValue
	}
	report.LabCWV = LabVitals{
		LCPMs: roundMs(lcp),
		INPMs: roundMs(inp),
		CLS:   cls,
		Labels: VitalLabels{
			LCP: ClassifyLCP(lcp),
			INP: ClassifyINP(inp),
			CLS: ClassifyCLS(cls),
		},
	}
	return report, nil
}

// decodeAudits walks the audits object token by token so encounter order is kept.
func decodeAudits(raw json.RawMessage) ([]namedAudit, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode audits: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decode audits: expected object")
	}
	var out []namedAudit
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode audit key: %w", err)
		}
		key, _ := keyTok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode audit %q: %w", key, err)
		}
		var entry auditEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			// Not shaped like an audit; keep the key so presence checks still work.
			entry = auditEntry{}
		}
		out = append(out, namedAudit{key: key, entry: entry})
	}
	return out, nil
}

// score converts a 0-1 category score to 0-100. Keys are also tried without
// dashes ("best-practices" / "bestpractices").
func score(cats map[string]*category, key string) int {
	cat := cats[key]
	if cat == nil {
		cat = cats[strings.ReplaceAll(key, "-", "")]
	}
	if cat == nil || cat.Score == nil {
		return 0
	}
	return int(math.RoundToEven(*cat.Score * 100))
}

func roundMs(v *float64) *int {
	if v == nil {
		return nil
	}
	ms := int(math.RoundToEven(*v))
	return &ms
}

type opportunity struct {
	savings float64
	title   string
}

// topOpportunities ranks opportunity audits by estimated savings, keeping
// encounter order between equal savings.
func topOpportunities(audits []namedAudit) []string {
	var opps []opportunity
	for _, a := range audits {
		if len(a.entry.Details) == 0 {
			continue
		}
		var details auditDetails
		if err := json.Unmarshal(a.entry.Details, &details); err != nil || details.Type != "opportunity" {
			continue
		}
		title := a.entry.Title
		if title == "" {
			title = a.key
		}
		var savings float64
		if details.OverallSavingsMs != nil {
			savings = *details.OverallSavingsMs
		}
		opps = append(opps, opportunity{savings: savings, title: title})
	}
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].savings > opps[j].savings
	})
	out := make([]string, 0, maxOpportunities)
	for i := 0; i < len(opps) && i < maxOpportunities; i++ {
		out = append(out, opps[i].title)
	}
	return out
}

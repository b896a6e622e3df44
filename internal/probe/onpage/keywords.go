package onpage

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	topTermLimit  = 10
	minTermLength = 3
)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "for": {}, "of": {}, "a": {}, "an": {}, "to": {}, "in": {},
	"on": {}, "at": {}, "by": {}, "with": {}, "is": {}, "are": {}, "was": {}, "were": {},
}

// presence reports where a term appears; matching is substring-based and case-insensitive.
type presence struct {
	title    string
	desc     string
	headings []string
}

func newPresence(r *Report) presence {
	p := presence{}
	if r.Title != nil {
		p.title = strings.ToLower(*r.Title)
	}
	if r.MetaDescription != nil {
		p.desc = strings.ToLower(*r.MetaDescription)
	}
	for _, h := range r.Headings.all() {
		p.headings = append(p.headings, strings.ToLower(h))
	}
	return p
}

func (p presence) inTitle(term string) bool { return p.title != "" && strings.Contains(p.title, term) }

func (p presence) inDesc(term string) bool { return p.desc != "" && strings.Contains(p.desc, term) }

func (p presence) inHeadings(term string) bool {
	for _, h := range p.headings {
		if strings.Contains(h, term) {
			return true
		}
	}
	return false
}

// focusOn counts raw (substring) occurrences of keyword in the page text.
func focusOn(keyword, text string, wordCount int, r *Report) KeywordFocus {
	kw := strings.ToLower(keyword)
	p := newPresence(r)
	count := strings.Count(strings.ToLower(text), kw)
	focus := KeywordFocus{
		Keyword:     keyword,
		InTitle:     p.inTitle(kw),
		InMetaDesc:  p.inDesc(kw),
		InHeadings:  p.inHeadings(kw),
		CountInBody: count,
	}
	if wordCount > 0 {
		focus.DensityPercent = round2(float64(count) / float64(wordCount) * 100)
	}
	return focus
}

// topTerms ranks words by frequency; ties keep first-occurrence order.
func topTerms(words []string, r *Report) TopTerms {
	counts := map[string]int{}
	var order []string
	for _, w := range words {
		if utf8.RuneCountInString(w) < minTermLength {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > topTermLimit {
		order = order[:topTermLimit]
	}

	p := newPresence(r)
	terms := make([]Term, 0, len(order))
	for _, w := range order {
		terms = append(terms, Term{
			Term:       w,
			Count:      counts[w],
			InTitle:    p.inTitle(w),
			InMetaDesc: p.inDesc(w),
			InHeadings: p.inHeadings(w),
		})
	}
	return TopTerms{Terms: terms}
}

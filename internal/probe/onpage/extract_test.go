package onpage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPage = `<html><head>
<title>Trail Running Shoes for Every Terrain</title>
<meta name="Description" content="Shop trail running shoes with grip.">
<meta name="robots" content="noindex, follow">
<link rel="canonical" href="https://example.com/shoes/">
<style>.hidden { display: none }</style>
</head><body>
<h1>Trail Running Shoes</h1><h1>Trail  Running Shoes</h1>
<h2>Why grip matters</h2><h2> </h2>
<p>Running shoes help running. Shoes shoes!</p>
<script>var running = 1;</script>
<img src="a.png" alt="A"><img src="b.png"><img alt=""><img src="c.png" alt=" ">
<a href="/about">About</a><a href="https://example.com/contact">C</a>
<a href="https://other.com/">O</a><a href="mailto:x@y.z">M</a>
</body></html>`

func TestExtract_PageSignals(t *testing.T) {
	t.Parallel()

	report, err := Extract("https://example.com/shoes", []byte(productPage), "")
	require.NoError(t, err)

	require.NotNil(t, report.Title)
	assert.Equal(t, "Trail Running Shoes for Every Terrain", *report.Title)
	require.NotNil(t, report.TitleStatus)
	assert.Equal(t, TitleGood, *report.TitleStatus)
	require.NotNil(t, report.MetaDescription)
	assert.Equal(t, "Shop trail running shoes with grip.", *report.MetaDescription)
	require.NotNil(t, report.Canonical)
	assert.Equal(t, "https://example.com/shoes/", *report.Canonical)
	assert.Equal(t, "noindex, follow", report.RobotsMeta)

	assert.Equal(t, []string{"Trail Running Shoes"}, report.Headings.H1)
	assert.Equal(t, []string{"Why grip matters"}, report.Headings.H2)
	assert.Empty(t, report.Headings.H3)

	assert.Equal(t, AltAudit{TotalImages: 4, MissingAltCount: 2, MissingAltPercent: 50}, report.AltAudit)
	assert.Equal(t, 2, report.InternalLinks)
	assert.Equal(t, 1, report.ExternalLinks)
	assert.Equal(t, 25, report.WordCount)
}

func TestExtract_KeywordFocus(t *testing.T) {
	t.Parallel()

	report, err := Extract("https://example.com/shoes", []byte(productPage), "Shoes")
	require.NoError(t, err)

	focus, ok := report.KeywordAnalysis.(KeywordFocus)
	require.True(t, ok, "expected keyword focus, got %T", report.KeywordAnalysis)
	assert.Equal(t, "keyword", focus.Mode())
	assert.Equal(t, KeywordFocus{
		Keyword:        "Shoes",
		InTitle:        true,
		InMetaDesc:     true,
		InHeadings:     true,
		CountInBody:    6,
		DensityPercent: 24,
	}, focus)
}

func TestExtract_TopTerms(t *testing.T) {
	t.Parallel()

	report, err := Extract("https://example.com/shoes", []byte(productPage), "  ")
	require.NoError(t, err)

	top, ok := report.KeywordAnalysis.(TopTerms)
	require.True(t, ok, "expected top terms, got %T", report.KeywordAnalysis)
	require.Len(t, top.Terms, 10)

	names := make([]string, 0, len(top.Terms))
	for _, term := range top.Terms {
		names = append(names, term.Term)
	}
	assert.Equal(t, []string{
		"shoes", "running", "trail", "every", "terrain", "why", "grip", "matters", "help", "about",
	}, names)
	assert.Equal(t, Term{Term: "shoes", Count: 6, InTitle: true, InMetaDesc: true, InHeadings: true}, top.Terms[0])
	assert.Equal(t, Term{Term: "help", Count: 1}, top.Terms[8])
}

func TestExtract_EmptyDocumentDefaults(t *testing.T) {
	t.Parallel()

	report, err := Extract("https://example.com", []byte("<html><body></body></html>"), "")
	require.NoError(t, err)
	assert.Nil(t, report.Title)
	assert.Nil(t, report.TitleStatus)
	assert.Nil(t, report.MetaDescription)
	assert.Nil(t, report.Canonical)
	assert.Equal(t, DefaultRobotsMeta, report.RobotsMeta)
	assert.Zero(t, report.WordCount)
	assert.Zero(t, report.AltAudit.MissingAltPercent)
	assert.Equal(t, TopTerms{Terms: []Term{}}, report.KeywordAnalysis)

	focus, err := Extract("https://example.com", []byte("<html></html>"), "seo")
	require.NoError(t, err)
	assert.Equal(t, KeywordFocus{Keyword: "seo"}, focus.KeywordAnalysis)
}

func TestClassifyTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "short", title: strings.Repeat("a", 29), want: TitleTooShort},
		{name: "lower bound", title: strings.Repeat("a", 30), want: TitleGood},
		{name: "upper bound", title: strings.Repeat("a", 60), want: TitleGood},
		{name: "long", title: strings.Repeat("a", 61), want: TitleTooLong},
		{name: "multibyte", title: strings.Repeat("é", 30), want: TitleGood},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, classifyTitle(tt.title))
		})
	}
}

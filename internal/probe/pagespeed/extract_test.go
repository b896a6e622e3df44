package pagespeed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestClassifyThresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		fn   func(*float64) *Label
		in   *float64
		want *Label
	}{
		{"lcp good edge", ClassifyLCP, ptr(2500), labelPtr(Good)},
		{"lcp needs improvement", ClassifyLCP, ptr(2501), labelPtr(NeedsImprovement)},
		{"lcp needs improvement edge", ClassifyLCP, ptr(4000), labelPtr(NeedsImprovement)},
		{"lcp poor", ClassifyLCP, ptr(4001), labelPtr(Poor)},
		{"lcp missing", ClassifyLCP, nil, nil},
		{"inp good", ClassifyINP, ptr(200), labelPtr(Good)},
		{"inp needs improvement", ClassifyINP, ptr(500), labelPtr(NeedsImprovement)},
		{"inp poor", ClassifyINP, ptr(501), labelPtr(Poor)},
		{"cls good", ClassifyCLS, ptr(0.10), labelPtr(Good)},
		{"cls needs improvement", ClassifyCLS, ptr(0.25), labelPtr(NeedsImprovement)},
		{"cls poor", ClassifyCLS, ptr(0.26), labelPtr(Poor)},
		{"cls missing", ClassifyCLS, nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.fn(tc.in))
		})
	}
}

func labelPtr(l Label) *Label { return &l }

func TestExtractScores(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"lighthouseResult":{"categories":{
		"performance":{"score":0.73},
		"seo":{"score":1},
		"bestpractices":{"score":0.5},
		"accessibility":{"score":null}
	}}}`)
	got, err := Extract(raw)
	require.NoError(t, err)
	require.Equal(t, Scores{Performance: 73, SEO: 100, Accessibility: 0, BestPractices: 50}, got.Scores)
	require.NotNil(t, got.TopOpportunities)
	require.Empty(t, got.TopOpportunities)
}

func TestExtractMissingLighthouseResult(t *testing.T) {
	t.Parallel()

	got, err := Extract([]byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, Scores{}, got.Scores)
	require.Nil(t, got.LabCWV.LCPMs)
	require.Nil(t, got.LabCWV.INPMs)
	require.Nil(t, got.LabCWV.CLS)
	require.Nil(t, got.LabCWV.Labels.LCP)
}

func TestExtractVitals(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"lighthouseResult":{"audits":{
		"largest-contentful-paint":{"numericValue":2500.4},
		"cumulative-layout-shift":{"numericValue":0.12},
		"experimental-interaction-to-next-paint":{"numericValue":900},
		"interaction-to-next-paint":{"numericValue":180.6}
	}}}`)
	got, err := Extract(raw)
	require.NoError(t, err)
	require.Equal(t, 2500, *got.LabCWV.LCPMs)
	require.Equal(t, 181, *got.LabCWV.INPMs, "stable metric wins over experimental")
	require.InDelta(t, 0.12, *got.LabCWV.CLS, 1e-9)
	// Labels use the unrounded value: 2500.4 is above the good threshold.
	require.Equal(t, NeedsImprovement, *got.LabCWV.Labels.LCP)
	require.Equal(t, Good, *got.LabCWV.Labels.INP)
	require.Equal(t, NeedsImprovement, *got.LabCWV.Labels.CLS)
}

func TestExtractExperimentalINPFallback(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"lighthouseResult":{"audits":{
		"experimental-interaction-to-next-paint":{"numericValue":650}
	}}}`)
	got, err := Extract(raw)
	require.NoError(t, err)
	require.Equal(t, 650, *got.LabCWV.INPMs)
	require.Equal(t, Poor, *got.LabCWV.Labels.INP)
}

func TestExtractOpportunitiesStableRanking(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"lighthouseResult":{"audits":{
		"zeta":{"title":"Small win","details":{"type":"opportunity","overallSavingsMs":120}},
		"render-blocking":{"title":"First 500","details":{"type":"opportunity","overallSavingsMs":500}},
		"not-an-opp":{"title":"Table","details":{"type":"table"}},
		"alpha":{"title":"Second 500","details":{"type":"opportunity","overallSavingsMs":500}},
		"untitled":{"details":{"type":"opportunity","overallSavingsMs":0}},
		"weird":{"title":"Weird","details":[1,2,3]}
	}}}`)
	got, err := Extract(raw)
	require.NoError(t, err)
	require.Equal(t, []string{"First 500", "Second 500", "Small win", "untitled"}, got.TopOpportunities)
}

func TestExtractOpportunitiesCappedAtFive(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"lighthouseResult":{"audits":{
		"a":{"title":"A","details":{"type":"opportunity","overallSavingsMs":10}},
		"b":{"title":"B","details":{"type":"opportunity","overallSavingsMs":60}},
		"c":{"title":"C","details":{"type":"opportunity","overallSavingsMs":50}},
		"d":{"title":"D","details":{"type":"opportunity","overallSavingsMs":40}},
		"e":{"title":"E","details":{"type":"opportunity","overallSavingsMs":30}},
		"f":{"title":"F","details":{"type":"opportunity","overallSavingsMs":20}}
	}}}`)
	got, err := Extract(raw)
	require.NoError(t, err)
	require.Equal(t, []string{"B", "C", "D", "E", "F"}, got.TopOpportunities)
}

func TestExtractRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := Extract([]byte(`{not json`))
	require.Error(t, err)
}

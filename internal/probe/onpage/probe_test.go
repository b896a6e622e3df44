package onpage

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-audit-service/internal/audit"
)

type stubFetcher struct {
	resp  audit.FetchResponse
	err   error
	calls atomic.Int32
}

func (s *stubFetcher) Fetch(_ context.Context, req audit.FetchRequest) (audit.FetchResponse, error) {
	s.calls.Add(1)
	if s.err != nil {
		return audit.FetchResponse{}, s.err
	}
	resp := s.resp
	resp.URL = req.URL
	return resp, nil
}

type stubDetector bool

func (s stubDetector) ShouldPromote(audit.FetchResponse) bool { return bool(s) }

func page(title string, headless bool) audit.FetchResponse {
	return audit.FetchResponse{
		StatusCode:   http.StatusOK,
		Body:         []byte("<html><head><title>" + title + "</title></head></html>"),
		UsedHeadless: headless,
	}
}

func TestProbeRun_LoadingPaths(t *testing.T) {
	t.Parallel()

	renderErr := errors.New("chrome crashed")
	tests := []struct {
		name         string
		cfg          Config
		promote      bool
		headlessErr  error
		wantTitle    string
		wantRendered string
		wantStatic   int32
		wantHeadless int32
	}{
		{name: "static only", wantTitle: "static", wantRendered: RenderedStatic, wantStatic: 1},
		{name: "promoted", promote: true, wantTitle: "rendered", wantRendered: RenderedHeadless, wantStatic: 1, wantHeadless: 1},
		{name: "promotion fails", promote: true, headlessErr: renderErr, wantTitle: "static", wantRendered: RenderedStatic, wantStatic: 1, wantHeadless: 1},
		{name: "always render", cfg: Config{AlwaysRender: true}, wantTitle: "rendered", wantRendered: RenderedHeadless, wantHeadless: 1},
		{name: "always render falls back", cfg: Config{AlwaysRender: true}, headlessErr: renderErr, wantTitle: "static", wantRendered: RenderedStatic, wantStatic: 1, wantHeadless: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			static := &stubFetcher{resp: page("static", false)}
			headless := &stubFetcher{resp: page("rendered", true), err: tt.headlessErr}
			probe := New(tt.cfg, static, headless, stubDetector(tt.promote), nil)

			report, err := probe.Run(context.Background(), "https://example.com/", "")
			require.NoError(t, err)
			require.NotNil(t, report.Title)
			assert.Equal(t, tt.wantTitle, *report.Title)
			assert.Equal(t, tt.wantRendered, report.RenderedWith)
			assert.Equal(t, tt.wantStatic, static.calls.Load())
			assert.Equal(t, tt.wantHeadless, headless.calls.Load())
		})
	}
}

func TestProbeRun_WithoutHeadless(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{resp: page("static", false)}
	probe := New(Config{AlwaysRender: true}, static, nil, stubDetector(true), nil)

	report, err := probe.Run(context.Background(), "https://example.com/", "")
	require.NoError(t, err)
	assert.Equal(t, RenderedStatic, report.RenderedWith)
	assert.Equal(t, int32(1), static.calls.Load())
}

func TestProbeRun_ErrorPageIsStillAnalysed(t *testing.T) {
	t.Parallel()

	notFound := &stubFetcher{resp: audit.FetchResponse{
		StatusCode: http.StatusNotFound,
		Body:       []byte(`<html><head><title>Page not found</title></head><body><a href="/">Home</a></body></html>`),
	}}
	report, err := New(Config{}, notFound, nil, nil, nil).Run(context.Background(), "https://example.com/gone", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, report.StatusCode)
	require.NotNil(t, report.Title)
	assert.Equal(t, "Page not found", *report.Title)
	assert.Equal(t, 1, report.InternalLinks)
}

func TestProbeRun_LinksFollowRedirectedHost(t *testing.T) {
	t.Parallel()

	redirected := &redirectFetcher{
		final: "https://www.example.com/",
		body: `<html><body><a href="/about">A</a><a href="https://www.example.com/shop">S</a>` +
			`<a href="https://blog.example.com/post">B</a><a href="https://example.org/">X</a></body></html>`,
	}
	report, err := New(Config{}, redirected, nil, nil, nil).Run(context.Background(), "https://example.com", "")
	require.NoError(t, err)
	assert.Equal(t, 3, report.InternalLinks)
	assert.Equal(t, 1, report.ExternalLinks)
	assert.Equal(t, "https://example.com", report.URL)
}

func TestProbeRun_FetchError(t *testing.T) {
	t.Parallel()

	broken := &stubFetcher{err: errors.New("dial tcp: refused")}
	_, err := New(Config{}, broken, nil, nil, nil).Run(context.Background(), "https://example.com/", "")
	require.ErrorContains(t, err, "refused")
}

type redirectFetcher struct {
	final string
	body  string
}

func (r *redirectFetcher) Fetch(context.Context, audit.FetchRequest) (audit.FetchResponse, error) {
	return audit.FetchResponse{URL: r.final, StatusCode: http.StatusOK, Body: []byte(r.body)}, nil
}

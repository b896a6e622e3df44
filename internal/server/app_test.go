package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit-service/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.PageSpeed.CacheDir = filepath.Join(dir, "psi")
	cfg.Storage.ReportsDir = filepath.Join(dir, "reports")
	cfg.Headless.Enabled = false
	cfg.HTTP.RateLimitRPS = 0
	cfg.PubSub.ProjectID = ""
	cfg.Sentry.DSN = ""
	return &cfg
}

func TestNewAppRequiresConfig(t *testing.T) {
	_, err := NewApp(nil, zap.NewNop())
	require.Error(t, err)
}

func TestBuildRejectsMalformedHostRateLimits(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.HostRateLimits = []string{"www.googleapis.com"}
	_, err := BuildWithLogger(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "host_rate_limits")
}

func TestBuildServesProbes(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
		case "/sitemap.xml":
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(`<urlset><url><loc>` + "http://" + r.Host + `/</loc></url></urlset>`))
		default:
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><title>Audit fixture page for the service</title></head>` +
				`<body><h1>Hello</h1><p>Some words about shoes and more shoes.</p></body></html>`))
		}
	}))
	t.Cleanup(site.Close)

	app, err := BuildWithLogger(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, app.Close(ctx))
	})

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/crawl?url="+site.URL, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var crawl map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &crawl))
	require.Equal(t, site.URL, crawl["url"])

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/onpage?url="+site.URL+"&keyword=shoes", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page struct {
		OnPage struct {
			Title        string `json:"title"`
			RenderedWith string `json:"rendered_with"`
		} `json:"onpage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, "Audit fixture page for the service", page.OnPage.Title)
	require.Equal(t, "static", page.OnPage.RenderedWith)
}

func TestBuildPerformanceWithoutKeyFailsFast(t *testing.T) {
	cfg := testConfig(t)
	cfg.PageSpeed.APIKey = ""
	app, err := BuildWithLogger(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/performance?url=example.com", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "API key not set")
}

func TestBuildReportJobFailsWhenUpstreamsAreDown(t *testing.T) {
	cfg := testConfig(t)
	cfg.PageSpeed.APIKey = ""
	cfg.Slides.APIKey = ""
	// Nothing listens here, so every upstream fails quickly.
	cfg.Narrative.Endpoint = "http://127.0.0.1:1"
	cfg.HTTP.MaxRetries = 0
	app, err := BuildWithLogger(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate-report", jsonBody(`{"url":"http://127.0.0.1:1"}`))
	app.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, app.Close(ctx))

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report-status/"+accepted["job_id"], nil))
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "failed", status["status"])
	require.NotEmpty(t, status["result"])
}

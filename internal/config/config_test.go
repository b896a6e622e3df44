package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 4, cfg.HTTP.MaxRetries)
	assert.Equal(t, 50, cfg.Crawl.SitemapURLCap)
	assert.Equal(t, "*", cfg.Crawl.RobotsAgent)
	assert.Equal(t, "llama3", cfg.Narrative.Model)
	assert.Equal(t, 20, cfg.Slides.MaxPolls)
	assert.Equal(t, []string{"performance", "seo", "accessibility", "best-practices"}, cfg.PageSpeed.Categories)
	assert.True(t, cfg.Headless.AlwaysRender)
	assert.Equal(t, 300*time.Second, cfg.RequestTimeout())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
http:
  max_retries: 2
  backoff_initial_ms: 500
  backoff_max_ms: 4000
pagespeed:
  cache_dir: /tmp/psi
  read_timeout_seconds: 60
crawl:
  sitemap_url_cap: 10
pubsub:
  project_id: demo
  topic_name: seo-jobs
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/psi", cfg.PageSpeed.CacheDir)
	assert.Equal(t, 10, cfg.Crawl.SitemapURLCap)
	assert.Equal(t, "seo-jobs", cfg.PubSub.TopicName)

	retry := cfg.PageSpeedRetryConfig()
	assert.Equal(t, 2, retry.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, retry.InitialBackoff)
	assert.Equal(t, 4*time.Second, retry.MaxBackoff)
	assert.Equal(t, 60*time.Second, retry.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.RetryConfig().ReadTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SEOAUDIT_SERVER_PORT", "7070")
	t.Setenv("GOOGLE_API_KEY", "psi-key")
	t.Setenv("GAMMA_API_KEY", "gamma-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "psi-key", cfg.PageSpeed.APIKey)
	assert.Equal(t, "gamma-key", cfg.Slides.APIKey)
}

func TestLoadEnvOnlyKeys(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
		got   func(Config) string
	}{
		{"pubsub project", "SEOAUDIT_PUBSUB_PROJECT_ID", "demo-project", func(c Config) string { return c.PubSub.ProjectID }},
		{"sentry dsn", "SEOAUDIT_SENTRY_DSN", "https://key@sentry.example.com/1", func(c Config) string { return c.Sentry.DSN }},
		{"crawl user agent", "SEOAUDIT_CRAWL_USER_AGENT", "AuditBot/2.0", func(c Config) string { return c.Crawl.UserAgent }},
		{"pagespeed key", "SEOAUDIT_PAGESPEED_API_KEY", "psi", func(c Config) string { return c.PageSpeed.APIKey }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.env, tc.value)
			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tc.value, tc.got(cfg))
		})
	}
}

func TestLoadHostRateLimits(t *testing.T) {
	t.Setenv("SEOAUDIT_HTTP_HOST_RATE_LIMITS", "www.googleapis.com=0.5,Public-API.gamma.app=1")

	cfg, err := Load("")
	require.NoError(t, err)
	rates, err := cfg.HostRPS()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"www.googleapis.com": 0.5, "public-api.gamma.app": 1}, rates)
}

func TestLoadPrefixedKeyWins(t *testing.T) {
	t.Setenv("SEOAUDIT_SLIDES_API_KEY", "prefixed")
	t.Setenv("GAMMA_API_KEY", "plain")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Slides.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"retries", func(c *Config) { c.HTTP.MaxRetries = -1 }, "http.max_retries"},
		{"backoff", func(c *Config) { c.HTTP.BackoffMaxMs = 10 }, "http backoff"},
		{"multiplier", func(c *Config) { c.HTTP.BackoffMultiplier = 0.5 }, "backoff_multiplier"},
		{"cache dir", func(c *Config) { c.PageSpeed.CacheDir = "" }, "pagespeed.cache_dir"},
		{"sitemap cap", func(c *Config) { c.Crawl.SitemapURLCap = 0 }, "sitemap_url_cap"},
		{"headless", func(c *Config) { c.Headless.MaxParallel = 0 }, "headless.max_parallel"},
		{"slides", func(c *Config) { c.Slides.MaxPolls = 0 }, "max_polls"},
		{"host rate format", func(c *Config) { c.HTTP.HostRateLimits = []string{"example.com"} }, "host_rate_limits"},
		{"host rate value", func(c *Config) { c.HTTP.HostRateLimits = []string{"example.com=-1"} }, "host_rate_limits"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	disabled := base
	disabled.Headless.Enabled = false
	disabled.Headless.MaxParallel = 0
	assert.NoError(t, disabled.Validate())
}

// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/seo-audit-service/internal/retryhttp"
)

// EnvPrefix prefixes every environment override, e.g. SEOAUDIT_SERVER_PORT.
const EnvPrefix = "SEOAUDIT"

// DotenvFile is read, when present, before the environment is consulted.
var DotenvFile = ".env"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	PageSpeed PageSpeedConfig `mapstructure:"pagespeed"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Narrative NarrativeConfig `mapstructure:"narrative"`
	Slides    SlidesConfig    `mapstructure:"slides"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// HTTPConfig configures the shared upstream client: timeouts, retries and rate limits.
type HTTPConfig struct {
	ConnectTimeoutSeconds int     `mapstructure:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int     `mapstructure:"read_timeout_seconds"`
	MaxRetries            int     `mapstructure:"max_retries"`
	BackoffInitialMs      int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs          int     `mapstructure:"backoff_max_ms"`
	BackoffMultiplier     float64 `mapstructure:"backoff_multiplier"`
	RateLimitRPS          float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst        int     `mapstructure:"rate_limit_burst"`
	// HostRateLimits overrides RateLimitRPS per upstream host as "host=rps" entries.
	HostRateLimits []string `mapstructure:"host_rate_limits"`
}

// PageSpeedConfig configures the page-speed scoring API.
type PageSpeedConfig struct {
	APIKey             string   `mapstructure:"api_key"`
	Endpoint           string   `mapstructure:"endpoint"`
	ReadTimeoutSeconds int      `mapstructure:"read_timeout_seconds"`
	CacheDir           string   `mapstructure:"cache_dir"`
	Categories         []string `mapstructure:"categories"`
}

// CrawlConfig configures robots.txt and sitemap inspection.
type CrawlConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	RobotsAgent    string `mapstructure:"robots_agent"`
	SitemapURLCap  int    `mapstructure:"sitemap_url_cap"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// HeadlessConfig configures page loading for the on-page probe.
type HeadlessConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	AlwaysRender       bool `mapstructure:"always_render"`
	MaxParallel        int  `mapstructure:"max_parallel"`
	NavTimeoutSeconds  int  `mapstructure:"nav_timeout_seconds"`
	PromotionThreshold int  `mapstructure:"promotion_threshold"`
}

// NarrativeConfig configures the text-generation service.
type NarrativeConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SlidesConfig configures the slide-deck service.
type SlidesConfig struct {
	APIKey              string `mapstructure:"api_key"`
	Endpoint            string `mapstructure:"endpoint"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
	MaxPolls            int    `mapstructure:"max_polls"`
	MaxWaitSeconds      int    `mapstructure:"max_wait_seconds"`
}

// JobsConfig bounds background report jobs.
type JobsConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// StorageConfig selects where report artifacts are written. An empty
// ReportsDir keeps them in memory.
type StorageConfig struct {
	ReportsDir string `mapstructure:"reports_dir"`
}

// PubSubConfig holds metadata for job notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// Load builds a Config from an optional file, a .env file and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(DotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", DotenvFile, err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	// The API keys keep the names they are commonly exported under.
	if err := v.BindEnv("pagespeed.api_key", EnvPrefix+"_PAGESPEED_API_KEY", "GOOGLE_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind pagespeed key: %w", err)
	}
	if err := v.BindEnv("slides.api_key", EnvPrefix+"_SLIDES_API_KEY", "GAMMA_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind slides key: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")

	v.SetDefault("http.connect_timeout_seconds", 10)
	v.SetDefault("http.read_timeout_seconds", 30)
	v.SetDefault("http.max_retries", 4)
	v.SetDefault("http.backoff_initial_ms", 1000)
	v.SetDefault("http.backoff_max_ms", 16000)
	v.SetDefault("http.backoff_multiplier", 2.0)
	v.SetDefault("http.rate_limit_rps", 2.0)
	v.SetDefault("http.rate_limit_burst", 4)
	v.SetDefault("http.host_rate_limits", []string{})

	v.SetDefault("pagespeed.api_key", "")
	v.SetDefault("pagespeed.endpoint", "https://www.googleapis.com/pagespeedonline/v5/runPagespeed")
	v.SetDefault("pagespeed.read_timeout_seconds", 180)
	v.SetDefault("pagespeed.cache_dir", "data/psi")
	v.SetDefault("pagespeed.categories", []string{"performance", "seo", "accessibility", "best-practices"})

	v.SetDefault("crawl.user_agent", "")
	v.SetDefault("crawl.robots_agent", "*")
	v.SetDefault("crawl.sitemap_url_cap", 50)
	v.SetDefault("crawl.timeout_seconds", 10)

	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.always_render", true)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 60)
	v.SetDefault("headless.promotion_threshold", 2048)

	v.SetDefault("narrative.endpoint", "http://127.0.0.1:11434")
	v.SetDefault("narrative.model", "llama3")
	v.SetDefault("narrative.timeout_seconds", 600)

	v.SetDefault("slides.api_key", "")
	v.SetDefault("slides.endpoint", "https://public-api.gamma.app/v0.2")
	v.SetDefault("slides.poll_interval_seconds", 5)
	v.SetDefault("slides.max_polls", 20)
	v.SetDefault("slides.max_wait_seconds", 0)

	v.SetDefault("jobs.max_concurrent", 4)
	v.SetDefault("storage.reports_dir", "reports")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "seo-audit-jobs")
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch {
	case c.Server.Port <= 0:
		return fmt.Errorf("server.port must be > 0")
	case c.Server.RequestTimeoutSeconds <= 0:
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	case c.HTTP.ConnectTimeoutSeconds <= 0 || c.HTTP.ReadTimeoutSeconds <= 0:
		return fmt.Errorf("http connect and read timeouts must be > 0")
	case c.HTTP.MaxRetries < 0:
		return fmt.Errorf("http.max_retries must be >= 0")
	case c.HTTP.BackoffInitialMs <= 0 || c.HTTP.BackoffMaxMs < c.HTTP.BackoffInitialMs:
		return fmt.Errorf("http backoff must satisfy 0 < backoff_initial_ms <= backoff_max_ms")
	case c.HTTP.BackoffMultiplier < 1:
		return fmt.Errorf("http.backoff_multiplier must be >= 1")
	case c.HTTP.RateLimitRPS < 0:
		return fmt.Errorf("http.rate_limit_rps must be >= 0")
	case c.PageSpeed.ReadTimeoutSeconds <= 0:
		return fmt.Errorf("pagespeed.read_timeout_seconds must be > 0")
	case c.PageSpeed.CacheDir == "":
		return fmt.Errorf("pagespeed.cache_dir is required")
	case c.Crawl.SitemapURLCap <= 0:
		return fmt.Errorf("crawl.sitemap_url_cap must be > 0")
	case c.Crawl.TimeoutSeconds <= 0:
		return fmt.Errorf("crawl.timeout_seconds must be > 0")
	case c.Headless.Enabled && c.Headless.MaxParallel <= 0:
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	case c.Slides.PollIntervalSeconds <= 0 || c.Slides.MaxPolls <= 0:
		return fmt.Errorf("slides polling interval and max_polls must be > 0")
	case c.Jobs.MaxConcurrent < 0:
		return fmt.Errorf("jobs.max_concurrent must be >= 0")
	}
	if _, err := c.HostRPS(); err != nil {
		return err
	}
	return nil
}

// HostRPS parses HTTP.HostRateLimits into per-host rates.
func (c Config) HostRPS() (map[string]float64, error) {
	rates := make(map[string]float64, len(c.HTTP.HostRateLimits))
	for _, entry := range c.HTTP.HostRateLimits {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		host, raw, ok := strings.Cut(entry, "=")
		host = strings.ToLower(strings.TrimSpace(host))
		if !ok || host == "" {
			return nil, fmt.Errorf("http.host_rate_limits: %q is not host=rps", entry)
		}
		rps, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || rps < 0 {
			return nil, fmt.Errorf("http.host_rate_limits: invalid rate in %q", entry)
		}
		rates[host] = rps
	}
	return rates, nil
}

// RetryConfig is the upstream client configuration for simple fetches.
func (c Config) RetryConfig() retryhttp.Config {
	return retryhttp.Config{
		ConnectTimeout: seconds(c.HTTP.ConnectTimeoutSeconds),
		ReadTimeout:    seconds(c.HTTP.ReadTimeoutSeconds),
		MaxRetries:     c.HTTP.MaxRetries,
		InitialBackoff: time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffFactor:  c.HTTP.BackoffMultiplier,
		MaxBackoff:     time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond,
	}
}

// PageSpeedRetryConfig is RetryConfig with the much longer scoring read timeout.
func (c Config) PageSpeedRetryConfig() retryhttp.Config {
	cfg := c.RetryConfig()
	cfg.ReadTimeout = seconds(c.PageSpeed.ReadTimeoutSeconds)
	return cfg
}

// CrawlRetryConfig is RetryConfig with the crawl read timeout.
func (c Config) CrawlRetryConfig() retryhttp.Config {
	cfg := c.RetryConfig()
	cfg.ReadTimeout = seconds(c.Crawl.TimeoutSeconds)
	return cfg
}

// RequestTimeout bounds synchronous API requests.
func (c Config) RequestTimeout() time.Duration {
	return seconds(c.Server.RequestTimeoutSeconds)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}


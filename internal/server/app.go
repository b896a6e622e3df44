// Package server builds the service from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit-service/internal/aggregator"
	"github.com/JakeFAU/seo-audit-service/internal/api"
	"github.com/JakeFAU/seo-audit-service/internal/audit"
	"github.com/JakeFAU/seo-audit-service/internal/clock/system"
	"github.com/JakeFAU/seo-audit-service/internal/config"
	collyfetcher "github.com/JakeFAU/seo-audit-service/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/seo-audit-service/internal/fetcher/headless"
	"github.com/JakeFAU/seo-audit-service/internal/headless/detector"
	"github.com/JakeFAU/seo-audit-service/internal/id/uuid"
	"github.com/JakeFAU/seo-audit-service/internal/logging"
	"github.com/JakeFAU/seo-audit-service/internal/narrative"
	"github.com/JakeFAU/seo-audit-service/internal/observability"
	"github.com/JakeFAU/seo-audit-service/internal/orchestrator"
	"github.com/JakeFAU/seo-audit-service/internal/policy/ratelimit"
	"github.com/JakeFAU/seo-audit-service/internal/probe/crawlability"
	"github.com/JakeFAU/seo-audit-service/internal/probe/onpage"
	"github.com/JakeFAU/seo-audit-service/internal/probe/pagespeed"
	memorypublisher "github.com/JakeFAU/seo-audit-service/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/seo-audit-service/internal/publisher/pubsub"
	"github.com/JakeFAU/seo-audit-service/internal/retryhttp"
	"github.com/JakeFAU/seo-audit-service/internal/slides"
	localstorage "github.com/JakeFAU/seo-audit-service/internal/storage/local"
	memorystorage "github.com/JakeFAU/seo-audit-service/internal/storage/memory"
)

// Version is reported to Sentry as the release; set at link time.
var Version = "dev"

const (
	shutdownTimeout = 10 * time.Second
	// Report jobs may be mid-generation at shutdown; give them longer than the HTTP drain.
	jobDrainTimeout = 30 * time.Second
	sentryFlush     = 2 * time.Second
)

type closer interface {
	Close() error
}

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	apiServer *api.Server
	jobs      *orchestrator.Orchestrator
	headless  *headlessfetcher.Fetcher
	publisher closer
	reporter  *observability.Reporter
}

// NewApp creates an App shell for cfg; Build fills in the dependencies.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("headless_enabled", cfg.Headless.Enabled),
		zap.Bool("pagespeed_key_set", cfg.PageSpeed.APIKey != ""),
		zap.Bool("slides_key_set", cfg.Slides.APIKey != ""),
	)
	return &App{cfg: cfg, logger: logger}, nil
}

// Handler exposes the HTTP routes, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP until ctx is canceled or the process receives SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), jobDrainTimeout)
	defer cancelClose()
	closeErr := a.Close(closeCtx)

	select {
	case err := <-serveErr:
		return errors.Join(fmt.Errorf("http server: %w", err), closeErr)
	default:
		return closeErr
	}
}

// Close waits for running jobs, then releases the browser, publisher and error reporter.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.jobs != nil {
		if err := a.jobs.Wait(ctx); err != nil {
			a.logger.Warn("report jobs still running at shutdown", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if a.headless != nil {
		a.headless.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if a.reporter != nil && !a.reporter.Flush(sentryFlush) {
		a.logger.Warn("sentry flush timed out")
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	app.logger.Info("building application dependencies")

	clock := system.New()
	hostRPS, err := cfg.HostRPS()
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.HTTP.RateLimitRPS,
		DefaultBurst: cfg.HTTP.RateLimitBurst,
		HostRPS:      hostRPS,
	})

	aud, err := setupAuditor(app, clock, limiter)
	if err != nil {
		return nil, err
	}

	blobs, err := setupBlobStore(app)
	if err != nil {
		return nil, err
	}

	publisher, ready, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	app.reporter, err = observability.New(observability.Config{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     Version,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init failed: %w", err)
	}
	app.logger.Info("error reporting", zap.Bool("sentry_enabled", app.reporter.Enabled()))

	narrator := narrative.New(narrative.Config{
		Endpoint: cfg.Narrative.Endpoint,
		Model:    cfg.Narrative.Model,
		Timeout:  time.Duration(cfg.Narrative.TimeoutSeconds) * time.Second,
	}, retryhttp.New(retryhttp.Config{
		ConnectTimeout: time.Duration(cfg.HTTP.ConnectTimeoutSeconds) * time.Second,
		ReadTimeout:    time.Duration(cfg.Narrative.TimeoutSeconds) * time.Second,
		MaxRetries:     1,
	}, retryhttp.WithLogger(logger.Named("narrative_http"))), logger.Named("narrative"))

	renderer := slides.New(slides.Config{
		APIKey:       cfg.Slides.APIKey,
		Endpoint:     cfg.Slides.Endpoint,
		PollInterval: time.Duration(cfg.Slides.PollIntervalSeconds) * time.Second,
		MaxPolls:     cfg.Slides.MaxPolls,
		MaxWait:      time.Duration(cfg.Slides.MaxWaitSeconds) * time.Second,
	}, retryhttp.New(cfg.RetryConfig(), retryhttp.WithLogger(logger.Named("slides_http"))), logger.Named("slides"))

	app.jobs, err = orchestrator.New(orchestrator.Config{
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
		Topic:         cfg.PubSub.TopicName,
	}, orchestrator.Deps{
		Store:     memorystorage.NewJobStore(),
		Auditor:   aud.combined,
		Narrator:  narrator,
		Renderer:  renderer,
		Blobs:     blobs,
		Publisher: publisher,
		Reporter:  app.reporter,
		IDs:       uuid.New(),
		Clock:     clock,
		Logger:    logger.Named("orchestrator"),
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator init failed: %w", err)
	}

	app.apiServer = api.NewServer(api.Config{
		RequestTimeout: cfg.RequestTimeout(),
	}, api.Deps{
		OnPage:       aud.onPage,
		Crawlability: aud.crawl,
		Performance:  aud.perf,
		Auditor:      aud.combined,
		Jobs:         app.jobs,
		Ready:        ready,
		Logger:       logger.Named("api"),
	})
	return app, nil
}

type auditors struct {
	onPage   *onpage.Probe
	crawl    *crawlability.Probe
	perf     *pagespeed.Probe
	combined *aggregator.Aggregator
}

func setupAuditor(app *App, clock audit.Clock, limiter *ratelimit.Limiter) (auditors, error) {
	cfg := app.cfg
	cache, err := localstorage.NewFetchCache(cfg.PageSpeed.CacheDir)
	if err != nil {
		return auditors{}, fmt.Errorf("fetch cache init failed: %w", err)
	}
	app.logger.Info("pagespeed cache", zap.String("dir", cfg.PageSpeed.CacheDir))

	perf := pagespeed.New(pagespeed.Config{
		APIKey:     cfg.PageSpeed.APIKey,
		Endpoint:   cfg.PageSpeed.Endpoint,
		Categories: cfg.PageSpeed.Categories,
	}, retryhttp.New(cfg.PageSpeedRetryConfig(),
		retryhttp.WithLimiter(limiter),
		retryhttp.WithLogger(app.logger.Named("pagespeed_http")),
	), cache, clock, app.logger.Named("pagespeed"))

	crawlCfg := cfg.CrawlRetryConfig()
	crawlCfg.UserAgent = cfg.Crawl.UserAgent
	crawl := crawlability.New(crawlability.Config{
		UserAgent:   cfg.Crawl.UserAgent,
		RobotsAgent: cfg.Crawl.RobotsAgent,
		URLCap:      cfg.Crawl.SitemapURLCap,
	}, retryhttp.New(crawlCfg,
		retryhttp.WithLimiter(limiter),
		retryhttp.WithLogger(app.logger.Named("crawl_http")),
	), app.logger.Named("crawlability"))

	static := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawl.UserAgent,
		Timeout:   time.Duration(cfg.HTTP.ReadTimeoutSeconds) * time.Second,
	})
	var rendered audit.Fetcher
	if cfg.Headless.Enabled {
		fetcher, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Crawl.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSeconds) * time.Second,
		})
		if err != nil {
			app.logger.Warn("headless fetcher init failed, using static fetches only", zap.Error(err))
		} else {
			app.headless = fetcher
			rendered = fetcher
			app.logger.Info("using headless fetcher", zap.Int("max_parallel", cfg.Headless.MaxParallel))
		}
	}
	page := onpage.New(onpage.Config{AlwaysRender: cfg.Headless.AlwaysRender},
		static, rendered, detector.NewHeuristic(cfg.Headless.PromotionThreshold), app.logger.Named("onpage"))

	return auditors{
		onPage:   page,
		crawl:    crawl,
		perf:     perf,
		combined: aggregator.New(page, crawl, perf, clock, app.logger.Named("aggregator")),
	}, nil
}

func setupBlobStore(app *App) (audit.BlobStore, error) {
	dir := app.cfg.Storage.ReportsDir
	if dir == "" {
		app.logger.Info("using in-memory report storage")
		return memorystorage.NewBlobStore(), nil
	}
	store, err := localstorage.New(localstorage.Config{BaseDir: dir})
	if err != nil {
		return nil, fmt.Errorf("local blob store init failed: %w", err)
	}
	app.logger.Info("using local report storage", zap.String("path", dir))
	return store, nil
}

func setupPublisher(ctx context.Context, app *App) (audit.Publisher, api.ReadyFunc, error) {
	cfg := app.cfg.PubSub
	if cfg.TopicName == "" || cfg.ProjectID == "" {
		app.logger.Warn("no Pub/Sub project configured, using in-memory publisher")
		pub := memorypublisher.New(memorypublisher.WithLogger(app.logger.Named("publisher")))
		app.publisher = pub
		return pub, nil, nil
	}
	pub, err := gcppublisher.New(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.publisher = pub
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", cfg.ProjectID),
		zap.String("topic", cfg.TopicName),
	)
	ready := func(ctx context.Context) error {
		return pub.CheckTopic(ctx, cfg.TopicName)
	}
	return pub, ready, nil
}

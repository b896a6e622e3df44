// Package slides turns narrative text into a hosted slide deck through the
// Gamma generations API.
package slides

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit-service/internal/poll"
)

// Defaults mirroring the Gamma public API usage.
const (
	DefaultEndpoint     = "https://public-api.gamma.app/v0.2"
	DefaultPollInterval = 5 * time.Second
	DefaultMaxPolls     = 20
)

// Generation states reported by the API.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	// ErrMissingAPIKey is returned before any network call when no key is configured.
	ErrMissingAPIKey = errors.New("slides API key not set: export GAMMA_API_KEY")
	// ErrGenerationFailed is returned when the deck generation ends in the failed state.
	ErrGenerationFailed = errors.New("slide generation failed")
	// ErrEmptyInput is returned for blank slide text.
	ErrEmptyInput = errors.New("slide text is empty")
)

// JSONClient is the subset of the retrying HTTP client used here.
type JSONClient interface {
	PostJSON(ctx context.Context, rawURL string, header http.Header, in, out any) error
	GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error
}

// Config configures the renderer.
type Config struct {
	APIKey       string
	Endpoint     string
	PollInterval time.Duration
	MaxPolls     int
	// MaxWait caps the whole polling phase; zero leaves only MaxPolls.
	MaxWait time.Duration
}

// Renderer creates decks and waits for them to finish.
type Renderer struct {
	cfg    Config
	client JSONClient
	sleep  poll.SleepFunc
	logger *zap.Logger
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithSleeper overrides the wait between status polls.
func WithSleeper(fn poll.SleepFunc) Option {
	return func(r *Renderer) {
		r.sleep = fn
	}
}

// New builds a Renderer.
func New(cfg Config, client JSONClient, logger *zap.Logger, opts ...Option) *Renderer {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Renderer{cfg: cfg, client: client, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type generationRequest struct {
	InputText string `json:"inputText"`
	TextMode  string `json:"textMode"`
	CardSplit string `json:"cardSplit"`
}

type generationStarted struct {
	GenerationID string `json:"generationId"`
}

type generationStatus struct {
	Status   string `json:"status"`
	GammaURL string `json:"gammaUrl"`
}

// Render submits text as a deck and returns the deck URL once generation completes.
func (r *Renderer) Render(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return "", ErrMissingAPIKey
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}

	var started generationStarted
	req := generationRequest{InputText: text, TextMode: "preserve", CardSplit: "inputTextBreaks"}
	if err := r.client.PostJSON(ctx, r.generationsURL(), r.header(), req, &started); err != nil {
		return "", fmt.Errorf("start slide generation: %w", err)
	}
	if started.GenerationID == "" {
		return "", errors.New("start slide generation: response has no generationId")
	}
	r.logger.Info("slide generation started", zap.String("generation_id", started.GenerationID))

	statusURL := r.generationsURL() + "/" + url.PathEscape(started.GenerationID)
	check := func(ctx context.Context) (generationStatus, error) {
		var status generationStatus
		if err := r.client.GetJSON(ctx, statusURL, r.header(), &status); err != nil {
			return status, err
		}
		return status, nil
	}
	done := poll.StatusIn(func(s generationStatus) string { return s.Status }, StatusCompleted, StatusFailed)
	cfg := poll.Config{
		Interval:    r.cfg.PollInterval,
		MaxAttempts: r.cfg.MaxPolls,
		Timeout:     r.cfg.MaxWait,
		Sleep:       r.sleep,
	}

	final, err := poll.Until(ctx, cfg, check, done)
	if err != nil {
		return "", fmt.Errorf("wait for generation %s: %w", started.GenerationID, err)
	}
	if final.Status == StatusFailed {
		return "", fmt.Errorf("%w: generation %s", ErrGenerationFailed, started.GenerationID)
	}
	if final.GammaURL == "" {
		return "", fmt.Errorf("%w: generation %s completed without a deck url", ErrGenerationFailed, started.GenerationID)
	}
	return final.GammaURL, nil
}

func (r *Renderer) generationsURL() string {
	return strings.TrimRight(r.cfg.Endpoint, "/") + "/generations"
}

func (r *Renderer) header() http.Header {
	h := http.Header{}
	h.Set("X-API-KEY", r.cfg.APIKey)
	return h
}

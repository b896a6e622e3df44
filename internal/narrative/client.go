// Package narrative asks a text-generation service to write the slide
// narrative for a combined audit report.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Defaults for a local Ollama server.
const (
	DefaultEndpoint = "http://127.0.0.1:11434"
	DefaultModel    = "llama3"
)

var (
	// ErrNoSlides is returned when the generated text has no slides section.
	ErrNoSlides = errors.New("narrative: generated text contains no slides section")
	// ErrEmptyResponse is returned when the model produced no text at all.
	ErrEmptyResponse = errors.New("narrative: empty model response")
)

// JSONPoster posts a JSON body and decodes the JSON response.
type JSONPoster interface {
	PostJSON(ctx context.Context, rawURL string, header http.Header, in, out any) error
}

// Config selects the generation backend.
type Config struct {
	Endpoint string
	Model    string
	// Timeout bounds one generation call; generation is slow on CPU-only hosts.
	Timeout time.Duration
}

// Client calls the Ollama generate API.
type Client struct {
	cfg    Config
	http   JSONPoster
	logger *zap.Logger
}

// New builds a Client.
func New(cfg Config, poster JSONPoster, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: poster, logger: logger}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate returns the raw model text for summary.
func (c *Client) Generate(ctx context.Context, summary any) (string, error) {
	prompt, err := BuildPrompt(summary)
	if err != nil {
		return "", err
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	var out generateResponse
	endpoint := strings.TrimRight(c.cfg.Endpoint, "/") + "/api/generate"
	req := generateRequest{Model: c.cfg.Model, Prompt: prompt}
	if err := c.http.PostJSON(ctx, endpoint, nil, req, &out); err != nil {
		return "", fmt.Errorf("generate with %s: %w", c.cfg.Model, err)
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", ErrEmptyResponse
	}
	c.logger.Debug("narrative generated",
		zap.String("model", c.cfg.Model),
		zap.Int("chars", len(out.Response)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out.Response, nil
}

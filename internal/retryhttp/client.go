// Package retryhttp wraps upstream HTTP calls with bounded retries and capped
// exponential backoff. It classifies responses into success, retriable and
// permanent failures and knows nothing about caching.
package retryhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit-service/internal/metrics"
)

// ErrRetriesExhausted is wrapped into the error returned after the final retriable failure.
var ErrRetriesExhausted = errors.New("retries exhausted")

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// DefaultMaxBodyBytes caps a response body read into memory.
const DefaultMaxBodyBytes int64 = 32 << 20

// ErrBodyTooLarge is returned when a response body exceeds Config.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Retriable reports whether a status code is in the transient set.
func Retriable(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Config controls timeouts and the retry schedule.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// MaxRetries counts retries after the first attempt.
	MaxRetries     int
	InitialBackoff time.Duration
	BackoffFactor  float64
	MaxBackoff     time.Duration
	UserAgent      string
	// MaxBodyBytes caps each response body; zero selects DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// DefaultConfig mirrors the schedule used for the scoring API: 1s doubling to 16s, five attempts.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
		MaxRetries:     4,
		InitialBackoff: time.Second,
		BackoffFactor:  2,
		MaxBackoff:     16 * time.Second,
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

// Limiter throttles calls per upstream host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Request is a single upstream call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a successful upstream response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client executes Requests with retries.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    Limiter
	sleep      SleepFunc
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithLimiter throttles every attempt through l.
func WithLimiter(l Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithSleeper replaces the backoff sleep, mainly for tests.
func WithSleeper(fn SleepFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// New builds a Client. Zero config values fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: newHTTPTransport(cfg),
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
		},
		sleep:  sleepWithContext,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Do executes req, retrying transient failures. Any 2xx is success; other
// statuses outside the retriable set fail immediately with a *StatusError.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	backoff := c.cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying upstream call",
				zap.String("url", redact(req.URL)),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			metrics.ObserveUpstreamRetry(req.URL)
			if err := c.sleep(ctx, backoff); err != nil {
				return Response{}, err
			}
			backoff = c.nextBackoff(backoff)
		}

		resp, err := c.attempt(ctx, req)
		if err != nil {
			if !c.shouldRetry(ctx, err) {
				return Response{}, err
			}
			lastErr = err
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(resp.Body)}
		if !Retriable(resp.StatusCode) {
			return Response{}, statusErr
		}
		lastErr = statusErr
	}
	return Response{}, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, c.cfg.MaxRetries+1, lastErr)
}

// GetJSON issues a GET and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Header: header})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// PostJSON encodes in as the request body and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, rawURL string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, URL: rawURL, Header: h, Body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, req Request) (Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, req.URL); err != nil {
			return Response{}, err
		}
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if c.cfg.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", method, redact(req.URL), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return Response{}, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(data)) > c.cfg.MaxBodyBytes {
		return Response{}, fmt.Errorf("%s %s: %w (limit %d bytes)", method, redact(req.URL), ErrBodyTooLarge, c.cfg.MaxBodyBytes)
	}
	return Response{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: data}, nil
}

// shouldRetry treats transport timeouts like a 408. Cancellation of the
// caller's context and every other transport error are final.
func (c *Client) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func (c *Client) nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * c.cfg.BackoffFactor)
	if next > c.cfg.MaxBackoff {
		return c.cfg.MaxBackoff
	}
	return next
}

func newHTTPTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff sleep: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}

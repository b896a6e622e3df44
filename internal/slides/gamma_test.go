package slides

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-audit-service/internal/poll"
	"github.com/JakeFAU/seo-audit-service/internal/retryhttp"
)

type gammaServer struct {
	srv      *httptest.Server
	mu       sync.Mutex
	statuses []string
	polls    int
	posted   generationRequest
	apiKeys  []string
}

func newGammaServer(t *testing.T, statuses ...string) *gammaServer {
	t.Helper()
	g := &gammaServer{statuses: statuses}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.apiKeys = append(g.apiKeys, r.Header.Get("X-API-KEY"))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/generations":
			_ = json.NewDecoder(r.Body).Decode(&g.posted)
			_, _ = w.Write([]byte(`{"generationId":"gen-1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/generations/gen-1":
			status := g.statuses[min(g.polls, len(g.statuses)-1)]
			g.polls++
			resp := generationStatus{Status: status}
			if status == StatusCompleted {
				resp.GammaURL = "https://gamma.app/docs/gen-1"
			}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *gammaServer) snapshot() (int, generationRequest, []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.polls, g.posted, append([]string(nil), g.apiKeys...)
}

func newRenderer(endpoint, key string, maxPolls int, sleeps *[]time.Duration) *Renderer {
	var mu sync.Mutex
	sleep := poll.SleepFunc(func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		*sleeps = append(*sleeps, d)
		return nil
	})
	return New(Config{APIKey: key, Endpoint: endpoint, MaxPolls: maxPolls},
		retryhttp.New(retryhttp.Config{}), nil, WithSleeper(sleep))
}

func TestRender_PollsUntilCompleted(t *testing.T) {
	t.Parallel()

	g := newGammaServer(t, StatusPending, StatusPending, StatusCompleted)
	var sleeps []time.Duration
	deckURL, err := newRenderer(g.srv.URL, "secret", 0, &sleeps).Render(context.Background(), "## Slide 1")
	require.NoError(t, err)
	assert.Equal(t, "https://gamma.app/docs/gen-1", deckURL)

	polls, posted, keys := g.snapshot()
	assert.Equal(t, 3, polls)
	assert.Equal(t, generationRequest{InputText: "## Slide 1", TextMode: "preserve", CardSplit: "inputTextBreaks"}, posted)
	assert.Equal(t, []string{"secret", "secret", "secret", "secret"}, keys)
	assert.Equal(t, []time.Duration{DefaultPollInterval, DefaultPollInterval, DefaultPollInterval}, sleeps)
}

func TestRender_FailedGeneration(t *testing.T) {
	t.Parallel()

	g := newGammaServer(t, StatusPending, StatusFailed)
	var sleeps []time.Duration
	_, err := newRenderer(g.srv.URL, "secret", 0, &sleeps).Render(context.Background(), "slides")
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestRender_GivesUpAfterMaxPolls(t *testing.T) {
	t.Parallel()

	g := newGammaServer(t, StatusPending)
	var sleeps []time.Duration
	_, err := newRenderer(g.srv.URL, "secret", 3, &sleeps).Render(context.Background(), "slides")
	require.ErrorIs(t, err, poll.ErrAttemptsExhausted)
	polls, _, _ := g.snapshot()
	assert.Equal(t, 3, polls)
}

func TestRender_FailsFastWithoutKey(t *testing.T) {
	t.Parallel()

	g := newGammaServer(t, StatusCompleted)
	var sleeps []time.Duration
	_, err := newRenderer(g.srv.URL, " ", 0, &sleeps).Render(context.Background(), "slides")
	require.ErrorIs(t, err, ErrMissingAPIKey)
	_, _, keys := g.snapshot()
	assert.Empty(t, keys)

	_, err = newRenderer(g.srv.URL, "secret", 0, &sleeps).Render(context.Background(), "  ")
	require.ErrorIs(t, err, ErrEmptyInput)
}

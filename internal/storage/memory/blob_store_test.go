package memory

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStore_PutObjectIsolatesCallerBuffer(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "job-1/seo_metrics.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://job-1/seo_metrics.json", uri)

	payload[0] = 'C'
	stored, ok := store.Object("job-1/seo_metrics.json")
	require.True(t, ok)
	require.Equal(t, "content", string(stored))
	require.Equal(t, "application/json", store.ContentType("job-1/seo_metrics.json"))

	stored[0] = 'X'
	again, _ := store.Object("/job-1/seo_metrics.json")
	require.Equal(t, "content", string(again))

	_, ok = store.Object("missing")
	require.False(t, ok)
}

func TestBlobStore_KeysAndOverwrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewBlobStore()
	for _, p := range []string{"job-2/slides.md", "job-1/seo_metrics.json", "job-1/slides.md"} {
		_, err := store.PutObject(ctx, p, "text/plain", strings.NewReader(p))
		require.NoError(t, err)
	}
	_, err := store.PutObject(ctx, "job-1/slides.md", "text/markdown", strings.NewReader("v2"))
	require.NoError(t, err)

	require.Equal(t, []string{"job-1/seo_metrics.json", "job-1/slides.md"}, store.Keys("job-1/"))
	got, _ := store.Object("job-1/slides.md")
	require.Equal(t, "v2", string(got))
	require.Equal(t, "text/markdown", store.ContentType("job-1/slides.md"))

	_, err = store.PutObject(ctx, "", "text/plain", strings.NewReader("x"))
	require.Error(t, err)
}

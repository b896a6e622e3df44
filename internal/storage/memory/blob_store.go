package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/seo-audit-service/internal/audit"
)

type object struct {
	contentType string
	body        []byte
}

// BlobStore holds report artifacts for the lifetime of the process.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

var _ audit.BlobStore = (*BlobStore)(nil)

// NewBlobStore returns an empty store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string]object)}
}

// PutObject records the artifact under path, replacing any earlier version.
func (s *BlobStore) PutObject(_ context.Context, path string, contentType string, data io.Reader) (string, error) {
	key := strings.TrimPrefix(path, "/")
	if key == "" {
		return "", errors.New("empty object path")
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(data); err != nil {
		return "", fmt.Errorf("buffer %s: %w", key, err)
	}
	s.mu.Lock()
	s.objects[key] = object{contentType: contentType, body: buf.Bytes()}
	s.mu.Unlock()
	return "memory://" + key, nil
}

// Object returns a copy of the artifact stored at path.
func (s *BlobStore) Object(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[strings.TrimPrefix(path, "/")]
	if !ok {
		return nil, false
	}
	return bytes.Clone(obj.body), true
}

// ContentType reports the media type the artifact was stored with.
func (s *BlobStore) ContentType(path string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[strings.TrimPrefix(path, "/")].contentType
}

// Keys lists stored paths with the given prefix in lexical order.
func (s *BlobStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

package local

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// UnknownSlug is the shared key for targets without a usable host. Distinct
// malformed targets collide on it.
const UnknownSlug = "unknown"

// FetchCache stores verbatim upstream documents keyed by (host slug, variant).
// Entries are replaced whole, never merged. Concurrent writers to one key are
// last-write-wins.
type FetchCache struct {
	dir string
}

// NewFetchCache creates a cache rooted at dir.
func NewFetchCache(dir string) (*FetchCache, error) {
	if err := ensureWritableDir(dir); err != nil {
		return nil, fmt.Errorf("fetch cache: %w", err)
	}
	return &FetchCache{dir: dir}, nil
}

// Slug derives the cache identity of a target from its host, lower-cased, with
// ":" and "/" replaced so it is always a single safe file name component.
func Slug(target string) string {
	var host string
	if u, err := url.Parse(target); err == nil {
		host = u.Host
		if host == "" {
			host = u.Path
		}
	}
	host = strings.Trim(strings.ToLower(host), "/")
	host = strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(host)
	if host == "" || host == "." || host == ".." {
		return UnknownSlug
	}
	return host
}

// Path returns the file backing (target, variant).
func (c *FetchCache) Path(target, variant string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s__%s.json", Slug(target), variant))
}

// Get returns the stored document, or ok=false when there is no entry.
func (c *FetchCache) Get(_ context.Context, target, variant string) ([]byte, bool, error) {
	data, err := os.ReadFile(c.Path(target, variant))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return data, true, nil
}

// Put atomically replaces the entry for (target, variant).
func (c *FetchCache) Put(_ context.Context, target, variant string, payload []byte) error {
	if err := writeFileAtomic(c.Path(target, variant), payload); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Package audiocache stores reference audio clips on disk so a lesson only
// downloads (or synthesizes) each clip once. Entries are keyed by their
// locator: remote URLs are fetched on miss, local paths pass through
// untouched, and synthesized audio is inserted explicitly via Put.
package audiocache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voxloop/voxloop/internal/observe"
)

const defaultExtension = ".mp3"

// Cache is a disk-backed audio clip cache. Safe for concurrent use: entries
// are written to a temp file and renamed into place, so readers never observe
// partial downloads.
type Cache struct {
	dir        string
	httpClient *http.Client
	metrics    *observe.Metrics
}

// Option is a functional option for configuring a Cache.
type Option func(*Cache)

// WithHTTPClient replaces the HTTP client used for downloads. The default
// has a 30 second timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(cache *Cache) { cache.httpClient = c }
}

// WithMetrics wires the cache's download counter. Nil disables recording.
func WithMetrics(m *observe.Metrics) Option {
	return func(cache *Cache) { cache.metrics = m }
}

// New creates a cache rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("audiocache: dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audiocache: create cache dir: %w", err)
	}
	c := &Cache{
		dir:        dir,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Has reports whether the clip for locator is already cached (or is a local
// file that needs no caching).
func (c *Cache) Has(locator string) bool {
	if isLocal(locator) {
		_, err := os.Stat(locator)
		return err == nil
	}
	_, err := os.Stat(c.pathFor(locator))
	return err == nil
}

// Fetch returns a local file path for the clip addressed by locator,
// downloading it into the cache on miss. Local paths are returned as-is.
func (c *Cache) Fetch(ctx context.Context, locator string) (string, error) {
	if locator == "" {
		return "", fmt.Errorf("audiocache: locator must not be empty")
	}
	if isLocal(locator) {
		if _, err := os.Stat(locator); err != nil {
			return "", fmt.Errorf("audiocache: local clip %q: %w", locator, err)
		}
		return locator, nil
	}

	path := c.pathFor(locator)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := c.download(ctx, locator, path); err != nil {
		return "", err
	}
	return path, nil
}

// Put stores synthesized audio under locator and returns the cached path.
func (c *Cache) Put(locator string, data []byte) (string, error) {
	if locator == "" {
		return "", fmt.Errorf("audiocache: locator must not be empty")
	}
	path := c.pathFor(locator)
	if err := writeAtomic(path, data); err != nil {
		return "", fmt.Errorf("audiocache: store clip: %w", err)
	}
	return path, nil
}

// Size returns the total bytes used by cached clips.
func (c *Cache) Size() (int64, error) {
	var total int64
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("audiocache: size: %w", err)
	}
	return total, nil
}

// Clear removes every cached clip. Local files referenced by locator are
// never touched.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("audiocache: clear: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("audiocache: clear: %w", err)
		}
	}
	return nil
}

func (c *Cache) download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("audiocache: create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("audiocache: download %q: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("audiocache: download %q: HTTP %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("audiocache: read download body: %w", err)
	}
	if err := writeAtomic(dest, data); err != nil {
		return fmt.Errorf("audiocache: store download: %w", err)
	}
	c.metrics.RecordCacheDownload(ctx)
	return nil
}

// pathFor derives the cache filename from the locator: a content-independent
// hash plus the locator's extension (defaulting to .mp3).
func (c *Cache) pathFor(locator string) string {
	sum := sha256.Sum256([]byte(locator))
	ext := defaultExtension
	if u, err := url.Parse(locator); err == nil {
		if e := filepath.Ext(u.Path); e != "" {
			ext = e
		}
	}
	return filepath.Join(c.dir, hex.EncodeToString(sum[:16])+ext)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// isLocal reports whether locator addresses a file on disk rather than a
// remote clip.
func isLocal(locator string) bool {
	return !strings.HasPrefix(locator, "http://") && !strings.HasPrefix(locator, "https://")
}

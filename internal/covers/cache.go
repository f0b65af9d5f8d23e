// Package covers keeps local copies of the cover images of saved books, so the
// reading log pages keep working when the catalog thumbnail links expire.
package covers

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxCoverBytes = 5 << 20

var ErrNotCached = errors.New("cover not cached")

// Cache stores cover images under dir, one file per book and image URL.
type Cache struct {
	dir        string
	httpClient *http.Client
	userAgent  string
}

// NewCache creates dir when missing.
func NewCache(dir string, timeout time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cover dir: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Cache{
		dir:        dir,
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "booklog/1.0",
	}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns the cached file for a book's cover URL, or ErrNotCached.
func (c *Cache) Path(bookID uint, imageURL string) (string, error) {
	if imageURL == "" {
		return "", ErrNotCached
	}
	path := filepath.Join(c.dir, coverFilename(bookID, imageURL))
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotCached
		}
		return "", err
	}
	return path, nil
}

// Store downloads imageURL unless it is already cached and returns the local path.
// An empty URL stores nothing and returns "".
func (c *Cache) Store(ctx context.Context, bookID uint, imageURL string) (string, error) {
	if imageURL == "" {
		return "", nil
	}

	if path, err := c.Path(bookID, imageURL); err == nil {
		return path, nil
	}

	path := filepath.Join(c.dir, coverFilename(bookID, imageURL))
	if err := c.download(ctx, imageURL, path); err != nil {
		return "", fmt.Errorf("cache cover of book %d: %w", bookID, err)
	}
	return path, nil
}

// Forget removes every cached cover of a book.
func (c *Cache) Forget(bookID uint) error {
	matches, err := filepath.Glob(filepath.Join(c.dir, fmt.Sprintf("cover_%d_*", bookID)))
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func coverFilename(bookID uint, imageURL string) string {
	hash := sha256.Sum256([]byte(imageURL))
	return fmt.Sprintf("cover_%d_%x.img", bookID, hash[:8])
}

func (c *Cache) download(ctx context.Context, imageURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("unexpected content type %q", ct)
	}

	tmp, err := os.CreateTemp(c.dir, "cover_tmp_")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmp, io.LimitReader(resp.Body, maxCoverBytes)); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

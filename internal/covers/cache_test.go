package covers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageServer(t *testing.T, hits *int32) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/cover.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("fake image data"))
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewCache_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "covers")

	cache, err := NewCache(dir, 0)
	require.NoError(t, err)

	assert.Equal(t, dir, cache.Dir())
	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestStore_EmptyURL(t *testing.T) {
	cache, err := NewCache(t.TempDir(), 0)
	require.NoError(t, err)

	path, err := cache.Store(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = cache.Path(1, "")
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestStore_DownloadsOnce(t *testing.T) {
	var hits int32
	server := imageServer(t, &hits)
	cache, err := NewCache(t.TempDir(), 0)
	require.NoError(t, err)

	url := server.URL + "/cover.jpg"
	_, err = cache.Path(7, url)
	assert.ErrorIs(t, err, ErrNotCached)

	first, err := cache.Store(context.Background(), 7, url)
	require.NoError(t, err)
	second, err := cache.Store(context.Background(), 7, url)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "fake image data", string(data))

	cached, err := cache.Path(7, url)
	require.NoError(t, err)
	assert.Equal(t, first, cached)
}

func TestStore_Failures(t *testing.T) {
	var hits int32
	server := imageServer(t, &hits)
	cache, err := NewCache(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = cache.Store(context.Background(), 1, server.URL+"/missing.jpg")
	assert.Error(t, err)

	_, err = cache.Store(context.Background(), 1, server.URL+"/page.html")
	assert.Error(t, err)

	entries, err := os.ReadDir(cache.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestForget(t *testing.T) {
	var hits int32
	server := imageServer(t, &hits)
	cache, err := NewCache(t.TempDir(), 0)
	require.NoError(t, err)

	url := server.URL + "/cover.jpg"
	_, err = cache.Store(context.Background(), 3, url)
	require.NoError(t, err)
	_, err = cache.Store(context.Background(), 4, url)
	require.NoError(t, err)

	require.NoError(t, cache.Forget(3))

	_, err = cache.Path(3, url)
	assert.ErrorIs(t, err, ErrNotCached)
	_, err = cache.Path(4, url)
	assert.NoError(t, err)
}

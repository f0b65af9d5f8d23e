package entrypoint

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/booklog/internal/auth"
	"github.com/mrlokans/booklog/internal/booksearch"
	"github.com/mrlokans/booklog/internal/config"
	http_controllers "github.com/mrlokans/booklog/internal/http"
	"github.com/mrlokans/booklog/internal/scheduler"
	"github.com/mrlokans/booklog/internal/tasks"
)

type recordingQueue struct {
	mu    sync.Mutex
	tasks []backlite.Task
}

func (q *recordingQueue) Enqueue(_ context.Context, tasks ...backlite.Task) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, tasks...)
	return make([]string, len(tasks)), nil
}

func jobNames(jobs []scheduler.Job) []string {
	names := make([]string, len(jobs))
	for i, job := range jobs {
		names[i] = job.Name
	}
	return names
}

func TestMaintenanceJobs(t *testing.T) {
	cfg := config.NewConfig()

	t.Run("everything enabled", func(t *testing.T) {
		m := maintenance{
			pages:   http_controllers.NewLivePageStore(0),
			limiter: auth.NewRateLimiter(5, time.Minute),
			queue:   &recordingQueue{},
		}
		jobs := m.jobs(cfg)
		assert.Equal(t, []string{"live_page_sweep", "login_limiter_sweep", "cover_sweep"}, jobNames(jobs))
		for _, job := range jobs {
			assert.NoError(t, scheduler.ValidateSchedule(job.Schedule), job.Name)
		}
	})

	t.Run("only live pages", func(t *testing.T) {
		m := maintenance{pages: http_controllers.NewLivePageStore(0)}
		assert.Equal(t, []string{"live_page_sweep"}, jobNames(m.jobs(cfg)))
	})

	t.Run("empty cover schedule disables the sweep", func(t *testing.T) {
		noCovers := *cfg
		noCovers.Covers.SweepSchedule = ""
		m := maintenance{queue: &recordingQueue{}}
		assert.Empty(t, m.jobs(&noCovers))
	})
}

func TestMaintenanceJobs_CoverSweepQueuesTask(t *testing.T) {
	queue := &recordingQueue{}
	m := maintenance{queue: queue}

	sched := scheduler.New()
	for _, job := range m.jobs(config.NewConfig()) {
		require.NoError(t, sched.Add(job))
	}
	require.NoError(t, sched.RunNow(context.Background(), "cover_sweep"))

	assert.Equal(t, []backlite.Task{tasks.CacheAllCoversTask{}}, queue.tasks)
}

func TestWidgetOptions(t *testing.T) {
	opts, err := widgetOptions(config.BookSearch{Supersede: "latest_issued", Failure: "keep_loader"})
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	_, err = widgetOptions(config.BookSearch{Supersede: "newest"})
	assert.Error(t, err)

	_, err = widgetOptions(config.BookSearch{Failure: "explode"})
	assert.Error(t, err)
}

func TestSearchFetcher(t *testing.T) {
	cat := NewCatalog(config.Catalog{})
	assert.Same(t, cat, searchFetcher(config.BookSearch{}, cat))

	remote := searchFetcher(config.BookSearch{Endpoint: "http://search.local/booksearch"}, cat)
	assert.IsType(t, &booksearch.HTTPFetcher{}, remote)
}

func TestCSRFSecret(t *testing.T) {
	secret, err := csrfSecret("00ff")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff}, secret)

	secret, err = csrfSecret("not hex at all")
	require.NoError(t, err)
	assert.Equal(t, []byte("not hex at all"), secret)

	secret, err = csrfSecret("")
	require.NoError(t, err)
	assert.Len(t, secret, 32)
}

func TestRunBookSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes", r.URL.Path)
		assert.Equal(t, "dune", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"dune-1","volumeInfo":{
			"title":"Dune","authors":["Frank Herbert"],"publishedDate":"1965-08-01",
			"imageLinks":{"thumbnail":"https://covers.example/dune.jpg"},
			"industryIdentifiers":[{"type":"ISBN_13","identifier":"978-0441013593"}]}}]}`))
	}))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.Catalog.GoogleBooksURL = srv.URL
	cfg.Catalog.OpenLibraryURL = srv.URL

	var out bytes.Buffer
	require.NoError(t, RunBookSearch(context.Background(), cfg, "dune", &out))

	var resp booksearch.SearchResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.Len(t, resp.Books, 1)
	assert.Equal(t, "Dune", resp.Books[0].Title)
	assert.Equal(t, "1965", resp.Books[0].Year)
	assert.Equal(t, "9780441013593", resp.Books[0].ISBN13)
}

func TestRunBookSearch_CatalogError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.Catalog.GoogleBooksURL = srv.URL

	var out bytes.Buffer
	err := RunBookSearch(context.Background(), cfg, "dune", &out)
	assert.ErrorContains(t, err, "book search failed")
	assert.Empty(t, out.String())
}

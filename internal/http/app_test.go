package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/booklog/internal/auth"
	"github.com/mrlokans/booklog/internal/booksearch"
	"github.com/mrlokans/booklog/internal/config"
	"github.com/mrlokans/booklog/internal/covers"
	"github.com/mrlokans/booklog/internal/database"
	"github.com/mrlokans/booklog/internal/database/books"
	"github.com/mrlokans/booklog/internal/database/shelves"
	"github.com/mrlokans/booklog/internal/database/users"
)

const templatesPath = "../../templates"

func setupTestDB(t *testing.T) (*database.Database, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "booklog.db")
	db, err := database.NewDatabase(dbPath, database.WithLogLevel(logger.Silent))
	require.NoError(t, err)
	return db, func() { _ = db.Close() }
}

// fakeQueue records enqueued tasks instead of running them.
type fakeQueue struct {
	mu     sync.Mutex
	tasks  []backlite.Task
	status backlite.TaskStatus
	err    error
}

func (q *fakeQueue) Enqueue(_ context.Context, tasks ...backlite.Task) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		q.tasks = append(q.tasks, task)
		ids[i] = fmt.Sprintf("task-%d", len(q.tasks))
	}
	return ids, nil
}

func (q *fakeQueue) Status(_ context.Context, _ string) (backlite.TaskStatus, error) {
	return q.status, q.err
}

func (q *fakeQueue) enqueued() []backlite.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]backlite.Task(nil), q.tasks...)
}

// stubCatalog answers searches from a fixed table.
type stubCatalog struct {
	mu      sync.Mutex
	results map[string][]booksearch.BookResult
	err     error
	queries []string
}

func (s *stubCatalog) Fetch(_ context.Context, query string) ([]booksearch.BookResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[query], nil
}

var (
	duneResult = booksearch.BookResult{
		ID:          "dune-1",
		Title:       "Dune",
		Author:      "Frank Herbert",
		Year:        "1965",
		ImageURL:    "https://covers.example/dune.jpg",
		ISBN10:      "0441013597",
		ISBN13:      "9780441013593",
		Identifiers: []byte(`[{"type":"ISBN_13","identifier":"9780441013593"},{"type":"ISBN_10","identifier":"0441013597"}]`),
	}
	messiahResult = booksearch.BookResult{
		ID:     "dune-2",
		Title:  "Dune Messiah",
		Author: "Frank Herbert",
		Year:   "1969",
	}
)

type testApp struct {
	router   *gin.Engine
	db       *database.Database
	books    *books.Repository
	shelves  *shelves.Repository
	pages    *LivePageStore
	catalog  *stubCatalog
	queue    *fakeQueue
	coverDir string
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := setupTestDB(t)
	t.Cleanup(cleanup)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)

	authCfg := config.Auth{Mode: config.AuthModeNone, SessionLifetime: time.Hour}
	sessions, err := auth.NewSessionManager(sqlDB, authCfg)
	require.NoError(t, err)

	coverDir := t.TempDir()
	cache, err := covers.NewCache(coverDir, 5*time.Second)
	require.NoError(t, err)

	app := &testApp{
		db:      db,
		books:   books.NewRepository(db.DB),
		shelves: shelves.NewRepository(db.DB),
		pages:   NewLivePageStore(10),
		catalog: &stubCatalog{results: map[string][]booksearch.BookResult{
			"dune": {duneResult, messiahResult},
		}},
		queue:    &fakeQueue{status: backlite.TaskStatusSuccess},
		coverDir: coverDir,
	}

	app.router, err = NewRouter(RouterConfig{
		Database:       db,
		Books:          app.books,
		Shelves:        app.shelves,
		Catalog:        app.catalog,
		Fetcher:        app.catalog,
		LivePages:      app.pages,
		AuthConfig:     authCfg,
		AuthService:    auth.NewService(users.NewRepository(db.DB), authCfg),
		SessionManager: sessions,
		TemplatesPath:  templatesPath,
		CoverCache:     cache,
		TaskClient:     app.queue,
		Version:        "test",
	})
	require.NoError(t, err)
	return app
}

// browser replays the cookies the app sets, like a real client would.
type browser struct {
	t       *testing.T
	app     *testApp
	cookies map[string]*http.Cookie
}

func (a *testApp) browser(t *testing.T) *browser {
	return &browser{t: t, app: a, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	b.app.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) htmx(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	return b.do(req)
}

func parseHTML(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

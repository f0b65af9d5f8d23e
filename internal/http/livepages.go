package http

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/booklog/internal/booksearch"
	"github.com/mrlokans/booklog/internal/dom"
	"github.com/mrlokans/booklog/internal/edittoggle"
)

// LivePage is the server-side document of the page a visitor is looking at. The book
// search widget and the edit toggles all mutate it under one lock.
type LivePage struct {
	mu      sync.Mutex
	path    string
	page    *dom.Page
	widget  *booksearch.Widget
	toggles map[string]*edittoggle.Toggle
}

// NewLivePage parses markup and binds the widget and one toggle per kind to it.
func NewLivePage(path, markup string, fetcher booksearch.Fetcher, opts ...booksearch.Option) (*LivePage, error) {
	page, err := dom.ParseString(markup)
	if err != nil {
		return nil, err
	}

	lp := &LivePage{
		path:    path,
		page:    page,
		toggles: make(map[string]*edittoggle.Toggle, len(edittoggle.Kinds)),
	}
	opts = append(opts, booksearch.WithLocker(&lp.mu))
	lp.widget, err = booksearch.New(page, fetcher, opts...)
	if err != nil {
		return nil, err
	}
	for _, kind := range edittoggle.Kinds {
		lp.toggles[kind.Name] = edittoggle.New(page, kind)
	}
	return lp, nil
}

// Path is the URL path the page was rendered for.
func (lp *LivePage) Path() string {
	return lp.path
}

func (lp *LivePage) Widget() *booksearch.Widget {
	return lp.widget
}

// Toggle runs fn against the toggle of kind and returns the kind's panels for an
// out-of-band swap.
func (lp *LivePage) Toggle(kind string, fn func(t *edittoggle.Toggle) error) (string, error) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	t, ok := lp.toggles[kind]
	if !ok {
		return "", fmt.Errorf("unknown edit kind %q", kind)
	}
	if err := fn(t); err != nil {
		return "", err
	}
	return t.Fragments()
}

type storedPage struct {
	page     *LivePage
	lastUsed time.Time
}

// LivePageStore holds one live page per session id.
type LivePageStore struct {
	mu       sync.Mutex
	pages    map[string]*storedPage
	maxPages int
	now      func() time.Time
}

// NewLivePageStore keeps at most maxPages pages; the least recently used page is
// evicted to make room. maxPages <= 0 means no limit.
func NewLivePageStore(maxPages int) *LivePageStore {
	return &LivePageStore{
		pages:    make(map[string]*storedPage),
		maxPages: maxPages,
		now:      time.Now,
	}
}

// Put replaces the page of id.
func (s *LivePageStore) Put(id string, page *LivePage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pages[id]; !exists && s.maxPages > 0 && len(s.pages) >= s.maxPages {
		s.evictOldest()
	}
	s.pages[id] = &storedPage{page: page, lastUsed: s.now()}
}

// Get returns the page of id and marks it as used.
func (s *LivePageStore) Get(id string) (*LivePage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.pages[id]
	if !ok {
		return nil, false
	}
	stored.lastUsed = s.now()
	return stored.page, true
}

func (s *LivePageStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, id)
}

func (s *LivePageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// Sweep drops pages unused for longer than idle and returns how many were dropped.
func (s *LivePageStore) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	removed := 0
	for id, stored := range s.pages {
		if stored.lastUsed.Before(cutoff) {
			delete(s.pages, id)
			removed++
		}
	}
	return removed
}

func (s *LivePageStore) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, stored := range s.pages {
		if oldestID == "" || stored.lastUsed.Before(oldest) {
			oldestID, oldest = id, stored.lastUsed
		}
	}
	if oldestID != "" {
		delete(s.pages, oldestID)
	}
}

// LivePageSessions stores the live page id of a visitor. Implemented by
// auth.SessionManager.
type LivePageSessions interface {
	LivePageID(ctx context.Context) string
	IssueLivePageID(ctx context.Context) string
}

// LivePages opens live pages for rendered markup and finds the page of a request.
type LivePages struct {
	store    *LivePageStore
	sessions LivePageSessions
	fetcher  booksearch.Fetcher
	options  []booksearch.Option
}

func NewLivePages(store *LivePageStore, sessions LivePageSessions, fetcher booksearch.Fetcher, opts ...booksearch.Option) *LivePages {
	return &LivePages{
		store:    store,
		sessions: sessions,
		fetcher:  fetcher,
		options:  opts,
	}
}

// Open makes markup the live page of the request's session, replacing the page the
// visitor had before.
func (lp *LivePages) Open(c *gin.Context, markup string) (*LivePage, error) {
	page, err := NewLivePage(c.Request.URL.Path, markup, lp.fetcher, lp.options...)
	if err != nil {
		return nil, err
	}

	ctx := c.Request.Context()
	id := lp.sessions.LivePageID(ctx)
	if id == "" {
		id = lp.sessions.IssueLivePageID(ctx)
	}
	lp.store.Put(id, page)
	return page, nil
}

// Current returns the live page of the request's session.
func (lp *LivePages) Current(c *gin.Context) (*LivePage, bool) {
	id := lp.sessions.LivePageID(c.Request.Context())
	if id == "" {
		return nil, false
	}
	return lp.store.Get(id)
}

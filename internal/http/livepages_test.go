package http

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/booklog/internal/booksearch"
	"github.com/mrlokans/booklog/internal/dom"
	"github.com/mrlokans/booklog/internal/edittoggle"
)

const widgetMarkup = `<html><body>
<form id="booksearch-form"><input id="booksearch-input" name="search"></form>
<div id="loader" class="hidden"></div>
<ul id="results"></ul>
<div id="selected" class="hidden">
  <div id="info"></div>
  <input id="title"><input id="year"><input id="author"><input id="image_url">
  <textarea id="identifiers"></textarea><input id="source_id">
</div>
<article id="plan-3"><form class="plan-edit-form hidden"></form></article>
</body></html>`

func newTestLivePage(t *testing.T) *LivePage {
	t.Helper()
	fetcher := booksearch.FetcherFunc(func(ctx context.Context, query string) ([]booksearch.BookResult, error) {
		return []booksearch.BookResult{duneResult}, nil
	})
	page, err := NewLivePage("/plans", widgetMarkup, fetcher)
	require.NoError(t, err)
	return page
}

func TestNewLivePage_RequiresWidgetMarkup(t *testing.T) {
	_, err := NewLivePage("/plans", `<html><body><p>no widget</p></body></html>`, &stubCatalog{})
	assert.ErrorIs(t, err, dom.ErrElementNotFound)
}

func TestLivePage_Toggle(t *testing.T) {
	page := newTestLivePage(t)
	assert.Equal(t, "/plans", page.Path())

	fragments, err := page.Toggle("plan", func(tg *edittoggle.Toggle) error {
		return tg.EditID("3")
	})
	require.NoError(t, err)

	doc := parseHTML(t, fragments)
	assert.Equal(t, 1, doc.Find("#plan-3[hx-swap-oob]").Length())
	assert.False(t, doc.Find("#plan-3 .plan-edit-form").HasClass("hidden"))

	_, err = page.Toggle("shelf", func(*edittoggle.Toggle) error { return nil })
	assert.Error(t, err)
}

func TestLivePage_SearchSharesLockWithToggles(t *testing.T) {
	page := newTestLivePage(t)

	outcome, err := page.Widget().Search(context.Background(), "dune").Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Applied)

	_, err = page.Toggle("plan", func(tg *edittoggle.Toggle) error { return tg.EditID("3") })
	require.NoError(t, err)
	assert.Len(t, page.Widget().State().Results, 1)
}

func TestLivePageStore_PutGet(t *testing.T) {
	store := NewLivePageStore(0)
	page := newTestLivePage(t)

	_, ok := store.Get("missing")
	assert.False(t, ok)

	store.Put("a", page)
	got, ok := store.Get("a")
	require.True(t, ok)
	assert.Same(t, page, got)
	assert.Equal(t, 1, store.Len())

	store.Remove("a")
	assert.Equal(t, 0, store.Len())
}

func TestLivePageStore_Sweep(t *testing.T) {
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	store := NewLivePageStore(0)
	store.now = func() time.Time { return now }

	store.Put("old", newTestLivePage(t))
	store.Put("touched", newTestLivePage(t))

	now = now.Add(20 * time.Minute)
	store.Put("new", newTestLivePage(t))
	_, ok := store.Get("touched")
	require.True(t, ok)

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, store.Sweep(30*time.Minute))

	_, ok = store.Get("old")
	assert.False(t, ok)
	assert.Equal(t, 2, store.Len())
}

func TestLivePageStore_EvictsLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	store := NewLivePageStore(2)
	store.now = func() time.Time { now = now.Add(time.Second); return now }

	store.Put("a", newTestLivePage(t))
	store.Put("b", newTestLivePage(t))
	_, _ = store.Get("a")

	store.Put("c", newTestLivePage(t))

	assert.Equal(t, 2, store.Len())
	_, ok := store.Get("b")
	assert.False(t, ok, "b was used least recently")
	_, ok = store.Get("a")
	assert.True(t, ok)

	store.Put("a", newTestLivePage(t))
	assert.Equal(t, 2, store.Len(), "replacing a page does not evict")
}

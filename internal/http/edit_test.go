package http

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/booklog/internal/database/books"
	"github.com/mrlokans/booklog/internal/entities"
)

func saveTestBook(t *testing.T, app *testApp, sourceID, title string) *entities.Book {
	t.Helper()
	book, _, err := app.books.CreateOrGet(books.Fields{SourceID: sourceID, Title: title, Author: "Frank Herbert"})
	require.NoError(t, err)
	return book
}

func TestEditToggle_OpenCloseAndCancel(t *testing.T) {
	app := setupTestApp(t)
	dune := saveTestBook(t, app, "dune-1", "Dune")
	emma := saveTestBook(t, app, "emma-1", "Emma")
	first, err := app.shelves.AddPlan(0, dune.ID, "", time.Time{})
	require.NoError(t, err)
	second, err := app.shelves.AddPlan(0, emma.ID, "", time.Time{})
	require.NoError(t, err)

	b := app.browser(t)
	w := b.get("/plans")
	require.Equal(t, http.StatusOK, w.Code)
	page := parseHTML(t, w.Body.String())
	require.Equal(t, 2, page.Find(".plan-edit-form.hidden").Length())

	firstPanel := fmt.Sprintf("#plan-%d", first.ID)
	secondPanel := fmt.Sprintf("#plan-%d", second.ID)

	w = b.htmx("/ui/edit/plan/edit", url.Values{"id": {fmt.Sprint(first.ID)}})
	require.Equal(t, http.StatusOK, w.Code)
	frag := parseHTML(t, w.Body.String())
	assert.False(t, frag.Find(firstPanel+" .plan-edit-form").HasClass("hidden"))
	assert.True(t, frag.Find(secondPanel+" .plan-edit-form").HasClass("hidden"))
	assert.Equal(t, "true", frag.Find(firstPanel).AttrOr("hx-swap-oob", ""))

	// A second edit click closes every form of the kind.
	w = b.htmx("/ui/edit/plan/edit", url.Values{"id": {fmt.Sprint(second.ID)}})
	require.Equal(t, http.StatusOK, w.Code)
	frag = parseHTML(t, w.Body.String())
	assert.Equal(t, 2, frag.Find(".plan-edit-form.hidden").Length())

	w = b.htmx("/ui/edit/plan/edit", url.Values{"id": {fmt.Sprint(second.ID)}})
	require.Equal(t, http.StatusOK, w.Code)
	w = b.htmx("/ui/edit/plan/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	frag = parseHTML(t, w.Body.String())
	assert.Equal(t, 2, frag.Find(".plan-edit-form.hidden").Length())
}

func TestEditToggle_Errors(t *testing.T) {
	app := setupTestApp(t)
	dune := saveTestBook(t, app, "dune-1", "Dune")
	_, err := app.shelves.AddReading(0, dune.ID, "", nil)
	require.NoError(t, err)

	b := app.browser(t)
	b.get("/reading")

	tests := []struct {
		name string
		path string
		id   string
		want int
	}{
		{"unknown kind", "/ui/edit/shelf/edit", "1", http.StatusNotFound},
		{"non-numeric id", "/ui/edit/reading/edit", "abc", http.StatusBadRequest},
		{"zero id", "/ui/edit/reading/edit", "0", http.StatusBadRequest},
		{"row not on page", "/ui/edit/reading/edit", "999", http.StatusNotFound},
		{"kind not on page", "/ui/edit/plan/edit", "1", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := b.htmx(tt.path, url.Values{"id": {tt.id}})
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestEditToggle_ReviewsUseBookKind(t *testing.T) {
	app := setupTestApp(t)
	dune := saveTestBook(t, app, "dune-1", "Dune")
	review, err := app.shelves.AddReview(0, dune.ID, reviewInputFixture())
	require.NoError(t, err)

	b := app.browser(t)
	b.get("/reviews")

	w := b.htmx("/ui/edit/book/edit", url.Values{"id": {fmt.Sprint(review.ID)}})
	require.Equal(t, http.StatusOK, w.Code)
	frag := parseHTML(t, w.Body.String())
	assert.False(t, frag.Find(fmt.Sprintf("#book-%d .book-edit-form", review.ID)).HasClass("hidden"))
}

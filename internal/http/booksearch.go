package http

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/booklog/internal/booksearch"
)

// BookSearchController serves the search backend and the widget interactions of
// live pages.
type BookSearchController struct {
	catalog booksearch.Fetcher
	pages   *LivePages
}

func NewBookSearchController(catalog booksearch.Fetcher, pages *LivePages) *BookSearchController {
	return &BookSearchController{
		catalog: catalog,
		pages:   pages,
	}
}

// Backend handles GET /booksearch?search=<query>.
func (bc *BookSearchController) Backend(c *gin.Context) {
	query, ok := c.GetQuery("search")
	if !ok {
		respondBadRequest(c, "search parameter is required")
		return
	}
	if bc.catalog == nil {
		respondError(c, http.StatusServiceUnavailable, "book search is not configured")
		return
	}

	books, err := bc.catalog.Fetch(c.Request.Context(), query)
	if err != nil {
		log.Printf("[BOOKSEARCH] Catalog search for %q failed: %v", query, err)
		respondError(c, http.StatusBadGateway, "book search failed")
		return
	}
	if books == nil {
		books = []booksearch.BookResult{}
	}
	c.JSON(http.StatusOK, booksearch.SearchResponse{Books: books})
}

// Search handles POST /ui/booksearch/search. It waits for the search to be
// processed and answers with the widget's regions.
func (bc *BookSearchController) Search(c *gin.Context) {
	page, ok := bc.currentPage(c)
	if !ok {
		return
	}

	// The fetch belongs to the page, not to this request: a superseded search is
	// cancelled by the widget, not by the browser dropping the request.
	pending := page.Widget().Search(context.WithoutCancel(c.Request.Context()), c.PostForm("search"))
	outcome, err := pending.Wait(c.Request.Context())
	if err != nil {
		return
	}
	if !outcome.Applied {
		log.Printf("[BOOKSEARCH] Search %d for %q was superseded", outcome.Generation, outcome.Query)
	}

	bc.respondFragments(c, page)
}

// Select handles POST /ui/booksearch/select with either a result key or a book id.
func (bc *BookSearchController) Select(c *gin.Context) {
	page, ok := bc.currentPage(c)
	if !ok {
		return
	}

	var err error
	if key := c.PostForm("key"); key != "" {
		_, err = page.Widget().Click(key)
	} else {
		_, err = page.Widget().ClickBookID(c.PostForm("book_id"))
	}
	if errors.Is(err, booksearch.ErrUnresolvedTarget) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		respondInternalError(c, err, "select book")
		return
	}

	bc.respondFragments(c, page)
}

func (bc *BookSearchController) currentPage(c *gin.Context) (*LivePage, bool) {
	return currentLivePage(c, bc.pages)
}

func (bc *BookSearchController) respondFragments(c *gin.Context, page *LivePage) {
	fragments, err := page.Widget().Fragments()
	if err != nil {
		respondInternalError(c, err, "render book search")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fragments))
}

// currentLivePage finds the request's live page. When the page is gone (evicted, or
// the server restarted) the browser is told to reload, which opens a new one.
func currentLivePage(c *gin.Context, pages *LivePages) (*LivePage, bool) {
	page, ok := pages.Current(c)
	if !ok {
		c.Header("HX-Refresh", "true")
		respondError(c, http.StatusGone, "page expired, reload to continue")
		return nil, false
	}
	return page, true
}

// Package booksearch drives the type-to-search book picker on a live page.
//
// A Widget owns the search state of one page: it issues searches through a Fetcher,
// renders the results list, resolves clicks on results back to their records and
// fills the detail panel of the add form. All mutations of the page happen under a
// single lock, so responses arriving from background fetches never interleave with
// user actions.
package booksearch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/mrlokans/booklog/internal/dom"
)

// ErrUnresolvedTarget is returned when a click does not map to a rendered result.
var ErrUnresolvedTarget = errors.New("click target does not resolve to a result")

// Widget is the book search component of one page.
type Widget struct {
	mu        sync.Locker
	page      *dom.Page
	fetcher   Fetcher
	sel       Selectors
	supersede SupersedePolicy
	failure   FailurePolicy

	state      State
	dispatch   *Dispatch
	batch      uint64
	generation uint64
	cancelPrev context.CancelFunc
}

// Option configures a Widget.
type Option func(*Widget)

// WithSelectors overrides the default host markup selectors.
func WithSelectors(sel Selectors) Option {
	return func(w *Widget) { w.sel = sel }
}

// WithSupersedePolicy sets how overlapping searches are resolved.
func WithSupersedePolicy(p SupersedePolicy) Option {
	return func(w *Widget) { w.supersede = p }
}

// WithFailurePolicy sets what a failed search does to the loader.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(w *Widget) { w.failure = p }
}

// WithLocker makes the widget serialize on l, so other components mutating the same
// page can share one lock.
func WithLocker(l sync.Locker) Option {
	return func(w *Widget) { w.mu = l }
}

// New binds a widget to page. Every selector the widget drives must be present.
func New(page *dom.Page, fetcher Fetcher, opts ...Option) (*Widget, error) {
	if page == nil {
		return nil, errors.New("page is required")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	w := &Widget{
		mu:      &sync.Mutex{},
		page:    page,
		fetcher: fetcher,
		sel:     DefaultSelectors(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := page.Require(w.sel.required()...); err != nil {
		return nil, fmt.Errorf("bind book search: %w", err)
	}
	w.dispatch = newDispatch(0, nil)
	return w, nil
}

// State returns a copy of the current state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.clone()
}

// Selectors returns the selectors the widget is bound to.
func (w *Widget) Selectors() Selectors {
	return w.sel
}

// Fragments renders the regions the widget mutates as out-of-band swap fragments.
func (w *Widget) Fragments() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.page.SwapFragments(w.sel.Input, w.sel.Loader, w.sel.Results, w.sel.Panel)
}

// Outcome is the processed result of one search.
type Outcome struct {
	Query      string
	Generation uint64
	Results    []BookResult
	Err        error
	// Applied is false when the response was discarded as stale.
	Applied bool
}

// Pending tracks a search whose response has not been processed yet.
type Pending struct {
	Query      string
	Generation uint64

	done    chan struct{}
	outcome Outcome
}

// Done is closed once the response has been processed.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the response has been processed or ctx ends.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Search issues a search for query. The loader is shown immediately; the response is
// processed in the background. Empty queries are sent like any other.
func (w *Widget) Search(ctx context.Context, query string) *Pending {
	w.mu.Lock()
	w.generation++
	gen := w.generation
	w.state.Query = query
	w.state.Loading = true
	w.page.Show(w.sel.Loader)
	if err := w.page.SetValue(w.sel.Input, query); err != nil {
		log.Printf("[BOOKSEARCH] Failed to keep query in %s: %v", w.sel.Input, err)
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	if w.supersede == LatestIssuedWins {
		if w.cancelPrev != nil {
			w.cancelPrev()
		}
		w.cancelPrev = cancel
	}
	w.mu.Unlock()

	p := &Pending{Query: query, Generation: gen, done: make(chan struct{})}
	go func() {
		defer cancel()
		results, err := w.fetcher.Fetch(fetchCtx, query)
		p.outcome = w.complete(gen, query, results, err)
		close(p.done)
	}()
	return p
}

func (w *Widget) complete(gen uint64, query string, results []BookResult, err error) Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := Outcome{Query: query, Generation: gen, Results: results, Err: err}
	if w.supersede == LatestIssuedWins && gen != w.generation {
		log.Printf("[BOOKSEARCH] Discarding response for %q (search %d, latest %d)", query, gen, w.generation)
		return out
	}
	out.Applied = true

	if err != nil {
		log.Printf("[BOOKSEARCH] Search for %q failed: %v", query, err)
		w.state.Failure = err
		if w.failure == ResetLoaderOnFailure {
			w.state.Loading = false
			w.page.Hide(w.sel.Loader)
		}
		return out
	}

	w.state.Loading = false
	w.state.Failure = nil
	w.page.Hide(w.sel.Loader)

	if len(results) > 0 && w.state.Selected != nil {
		w.state.Selected = nil
		if perr := paintDetail(w.page, w.sel, nil); perr != nil {
			out.Err = perr
			return out
		}
	}
	if perr := w.paintResults(results); perr != nil {
		out.Err = perr
	}
	return out
}

func (w *Widget) paintResults(results []BookResult) error {
	w.batch++
	markup, dispatch, err := RenderResults(results, w.batch)
	if err != nil {
		return err
	}
	if err := w.page.ReplaceChildren(w.sel.Results, markup); err != nil {
		return err
	}
	w.state.Results = append([]BookResult(nil), results...)
	w.dispatch = dispatch
	return nil
}

// Click selects the result rendered under key (a data-result-key value).
func (w *Widget) Click(key string) (SelectedBook, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	el := w.renderedWith("data-result-key", key)
	if el.Length() == 0 {
		return w.unresolved("key", key)
	}
	return w.clickElement(el)
}

// ClickBookID selects the first current result carrying id.
func (w *Widget) ClickBookID(id string) (SelectedBook, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	el := w.renderedWith("data-book-id", id)
	if el.Length() == 0 {
		return w.unresolved("book id", id)
	}
	return w.clickElement(el)
}

// renderedWith finds the first element of the results list whose attr equals value.
func (w *Widget) renderedWith(attr, value string) *goquery.Selection {
	return w.page.Find(w.sel.Results + " [" + attr + "]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr(attr, "") == value
	}).First()
}

// clickElement selects the result owning el, which may be any element inside a
// rendered result. A key from an older batch does not fall back to the book id.
// The caller holds w.mu.
func (w *Widget) clickElement(el *goquery.Selection) (SelectedBook, error) {
	if key, ok := el.Closest("[data-result-key]").Attr("data-result-key"); ok {
		book, found := w.dispatch.Lookup(key)
		if !found {
			return w.unresolved("key", key)
		}
		return w.selectBook(book)
	}
	if id, ok := el.Closest("[data-book-id]").Attr("data-book-id"); ok {
		if book, found := w.dispatch.LookupID(id); found {
			return w.selectBook(book)
		}
		return w.unresolved("book id", id)
	}
	return w.unresolved("element", goquery.NodeName(el))
}

func (w *Widget) unresolved(kind, value string) (SelectedBook, error) {
	log.Printf("[BOOKSEARCH] Ignoring click: %s %q does not match a current result", kind, value)
	return SelectedBook{}, fmt.Errorf("%w: %s %q", ErrUnresolvedTarget, kind, value)
}

func (w *Widget) selectBook(book BookResult) (SelectedBook, error) {
	selected := book.Selected()
	w.state.Selected = &selected
	if err := w.paintResults(nil); err != nil {
		return SelectedBook{}, err
	}
	if err := paintDetail(w.page, w.sel, &selected); err != nil {
		return SelectedBook{}, err
	}
	return selected, nil
}

package booksearch

import (
	"fmt"
	"html/template"
	"strings"
)

var thumbnailFuncs = template.FuncMap{"thumbnail": thumbnailSource}

var resultTemplate = template.Must(template.New("result").Funcs(thumbnailFuncs).Parse(
	`{{$id := .Book.ID}}{{$key := .Key}}<li class="search-result" data-book-id="{{$id}}" data-result-key="{{$key}}">` +
		`<div class="search-result-thumbnail" data-book-id="{{$id}}" data-result-key="{{$key}}">` +
		`<img src="{{thumbnail .Book.ImageURL}}" alt="" data-book-id="{{$id}}" data-result-key="{{$key}}"/></div>` +
		`<div class="search-result-text" data-book-id="{{$id}}" data-result-key="{{$key}}">` +
		`<span class="book-title" data-book-id="{{$id}}" data-result-key="{{$key}}">{{.Book.Title}}</span>` +
		`{{if .Book.Author}}<span class="book-author" data-book-id="{{$id}}" data-result-key="{{$key}}">&nbsp;&ndash; {{.Book.Author}}</span>{{end}}` +
		`{{with .ISBN}}<br/><div class="isbn" data-book-id="{{$id}}" data-result-key="{{$key}}">{{.}}</div>{{end}}` +
		`</div></li>`))

// thumbnailSource passes an image URL through unchanged, data: and blob: URLs
// included. Script schemes are left as plain strings for html/template to reject.
func thumbnailSource(raw string) any {
	scheme, _, found := strings.Cut(strings.TrimSpace(raw), ":")
	if found {
		switch strings.ToLower(scheme) {
		case "javascript", "vbscript":
			return raw
		}
	}
	return template.URL(raw)
}

// ResultKey identifies the index-th result of a rendered batch.
func ResultKey(batch uint64, index int) string {
	return fmt.Sprintf("r%d-%d", batch, index)
}

// Dispatch maps the interactive elements of one rendered batch back to their records.
type Dispatch struct {
	results []BookResult
	byKey   map[string]int
}

func newDispatch(batch uint64, results []BookResult) *Dispatch {
	d := &Dispatch{
		results: append([]BookResult(nil), results...),
		byKey:   make(map[string]int, len(results)),
	}
	for i := range results {
		d.byKey[ResultKey(batch, i)] = i
	}
	return d
}

// Len is the number of rendered results.
func (d *Dispatch) Len() int { return len(d.results) }

// Lookup resolves a data-result-key.
func (d *Dispatch) Lookup(key string) (BookResult, bool) {
	i, ok := d.byKey[key]
	if !ok {
		return BookResult{}, false
	}
	return d.results[i], true
}

// LookupID resolves a data-book-id to the first result carrying it.
func (d *Dispatch) LookupID(id string) (BookResult, bool) {
	for _, r := range d.results {
		if r.ID == id {
			return r, true
		}
	}
	return BookResult{}, false
}

// RenderResults produces the list items for results, in order, keyed under batch.
func RenderResults(results []BookResult, batch uint64) (string, *Dispatch, error) {
	var b strings.Builder
	for i, r := range results {
		data := struct {
			Book BookResult
			Key  string
			ISBN string
		}{Book: r, Key: ResultKey(batch, i), ISBN: r.IdentifierLine()}
		if err := resultTemplate.Execute(&b, data); err != nil {
			return "", nil, fmt.Errorf("render result %d: %w", i, err)
		}
	}
	return b.String(), newDispatch(batch, results), nil
}

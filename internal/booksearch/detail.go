package booksearch

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/mrlokans/booklog/internal/dom"
)

var previewTemplate = template.Must(template.New("preview").Funcs(thumbnailFuncs).Parse(
	`<div class="book-preview">` +
		`{{if .ImageURL}}<div class="book-thumbnail"><img src="{{thumbnail .ImageURL}}" alt=""/></div>{{end}}` +
		`<div class="book-metadata"><span class="book-title">{{.Title}}</span>` +
		`{{with .Byline}}<br/><span class="book-byline">{{.}}</span>{{end}}</div></div>`))

// RenderPreview produces the content of the info area for book.
func RenderPreview(book SelectedBook) (string, error) {
	var b strings.Builder
	if err := previewTemplate.Execute(&b, book); err != nil {
		return "", fmt.Errorf("render preview: %w", err)
	}
	return b.String(), nil
}

// paintDetail shows book in the detail panel, or hides the panel when book is nil.
// Hiding leaves the form fields as they are.
func paintDetail(page *dom.Page, sel Selectors, book *SelectedBook) error {
	if book == nil {
		page.Hide(sel.Panel)
		return nil
	}

	page.Show(sel.Panel)
	if err := page.SetValue(sel.Input, ""); err != nil {
		return err
	}

	preview, err := RenderPreview(*book)
	if err != nil {
		return err
	}
	if err := page.ReplaceChildren(sel.inPanel(sel.Info), preview); err != nil {
		return err
	}

	fields := []struct{ selector, value string }{
		{sel.Title, book.Title},
		{sel.Year, book.Year},
		{sel.Author, book.Author},
		{sel.ImageURL, book.ImageURL},
		{sel.Identifiers, book.Identifiers},
		{sel.SourceID, book.ID},
	}
	for _, f := range fields {
		if err := page.SetValue(sel.inPanel(f.selector), f.value); err != nil {
			return err
		}
	}
	return nil
}

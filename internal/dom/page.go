// Package dom holds a server-side copy of a rendered HTML page.
//
// A Page is parsed once from the markup produced by the HTML templates and is then
// mutated by the widgets that live on it (book search, edit toggles). Changed regions
// are read back as fragments and swapped into the browser by HTMX.
//
// Page is not safe for concurrent use; owners serialize access.
package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HiddenClass is the CSS class used to hide elements.
const HiddenClass = "hidden"

// ErrElementNotFound is returned when a selector matches nothing.
var ErrElementNotFound = errors.New("element not found")

// Page wraps a goquery document.
type Page struct {
	doc *goquery.Document
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Page{doc: doc}, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(markup string) (*Page, error) {
	return Parse(strings.NewReader(markup))
}

// Find returns the selection matching selector. The selection is only valid until
// the next mutation of the matched region.
func (p *Page) Find(selector string) *goquery.Selection {
	return p.doc.Find(selector)
}

// Require checks that every selector matches at least one element.
func (p *Page) Require(selectors ...string) error {
	var missing []string
	for _, sel := range selectors {
		if p.doc.Find(sel).Length() == 0 {
			missing = append(missing, sel)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrElementNotFound, strings.Join(missing, ", "))
	}
	return nil
}

// Show removes the hidden class from every match.
func (p *Page) Show(selector string) {
	p.doc.Find(selector).RemoveClass(HiddenClass)
}

// Hide adds the hidden class to every match.
func (p *Page) Hide(selector string) {
	p.doc.Find(selector).AddClass(HiddenClass)
}

// IsHidden reports whether the first match carries the hidden class.
// A selector with no match counts as hidden.
func (p *Page) IsHidden(selector string) bool {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return true
	}
	return sel.HasClass(HiddenClass)
}

// SetValue writes the value attribute of the first match. Textareas get their text
// content replaced instead.
func (p *Page) SetValue(selector, value string) error {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	if goquery.NodeName(sel) == "textarea" {
		sel.SetText(value)
		return nil
	}
	sel.SetAttr("value", value)
	return nil
}

// Value reads back what SetValue wrote.
func (p *Page) Value(selector string) string {
	sel := p.doc.Find(selector).First()
	if goquery.NodeName(sel) == "textarea" {
		return sel.Text()
	}
	return sel.AttrOr("value", "")
}

// ReplaceChildren swaps the content of the first match for markup.
func (p *Page) ReplaceChildren(selector, markup string) error {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	sel.SetHtml(markup)
	return nil
}

// Fragment returns the outer HTML of the first match.
func (p *Page) Fragment(selector string) (string, error) {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return goquery.OuterHtml(sel)
}

// SwapFragments renders the first match of each selector with hx-swap-oob set, ready
// to be concatenated into an HTMX response. The page itself is left untouched.
func (p *Page) SwapFragments(selectors ...string) (string, error) {
	var b strings.Builder
	for _, selector := range selectors {
		sel := p.doc.Find(selector)
		if sel.Length() == 0 {
			return "", fmt.Errorf("%w: %s", ErrElementNotFound, selector)
		}
		var err error
		sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			clone := s.Clone()
			clone.SetAttr("hx-swap-oob", "true")
			var html string
			html, err = goquery.OuterHtml(clone)
			if err != nil {
				return false
			}
			b.WriteString(html)
			b.WriteByte('\n')
			return true
		})
		if err != nil {
			return "", fmt.Errorf("render %s: %w", selector, err)
		}
	}
	return b.String(), nil
}

// HTML renders the whole document.
func (p *Page) HTML() (string, error) {
	return p.doc.Html()
}

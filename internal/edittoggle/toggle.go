// Package edittoggle reveals the inline edit form of one list item at a time.
//
// Reviews, readings and plans all render a hidden edit form under each row. A Toggle
// tracks which row of its kind is being edited; kinds share no state.
package edittoggle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mrlokans/booklog/internal/dom"
)

// ErrInvalidID is returned when an edit control carries no usable numeric id.
var ErrInvalidID = errors.New("invalid item id")

// Kind describes the markup of one editable list.
type Kind struct {
	Name           string
	EditSelector   string
	CancelSelector string
	DataAttr       string
	PanelPrefix    string
	FormSelector   string
}

var (
	BookKind = Kind{
		Name:           "book",
		EditSelector:   ".edit-book",
		CancelSelector: ".cancel-edit",
		DataAttr:       "data-bookid",
		PanelPrefix:    "#book-",
		FormSelector:   ".book-edit-form",
	}
	ReadingKind = Kind{
		Name:           "reading",
		EditSelector:   ".edit-reading",
		CancelSelector: ".cancel-edit",
		DataAttr:       "data-readingid",
		PanelPrefix:    "#reading-",
		FormSelector:   ".reading-edit-form",
	}
	PlanKind = Kind{
		Name:           "plan",
		EditSelector:   ".edit-plan",
		CancelSelector: ".cancel-edit",
		DataAttr:       "data-planid",
		PanelPrefix:    "#plan-",
		FormSelector:   ".plan-edit-form",
	}
)

// Kinds lists the built-in kinds.
var Kinds = []Kind{BookKind, ReadingKind, PlanKind}

// KindByName finds a built-in kind.
func KindByName(name string) (Kind, bool) {
	for _, k := range Kinds {
		if k.Name == name {
			return k, true
		}
	}
	return Kind{}, false
}

// Panel returns the selector of the row panel for id.
func (k Kind) Panel(id int64) string {
	return k.PanelPrefix + strconv.FormatInt(id, 10)
}

// Toggle is the edit state of one kind on one page. It does not lock; the page owner
// serializes calls.
type Toggle struct {
	kind    Kind
	page    *dom.Page
	editing int64
}

func New(page *dom.Page, kind Kind) *Toggle {
	return &Toggle{kind: kind, page: page}
}

// current returns the id being edited, if any.
func (t *Toggle) current() (int64, bool) {
	return t.editing, t.editing != 0
}

// Edit handles a click on an edit control. With nothing being edited it opens the
// form of the control's row; otherwise it closes every form of the kind.
func (t *Toggle) Edit(control *goquery.Selection) error {
	if _, open := t.current(); open {
		t.Cancel()
		return nil
	}
	raw, _ := control.Attr(t.kind.DataAttr)
	return t.open(raw)
}

// EditID clicks the edit control whose data attribute is raw. Without such a
// control on the page the id is reported as invalid or missing.
func (t *Toggle) EditID(raw string) error {
	if _, open := t.current(); open {
		t.Cancel()
		return nil
	}
	control := t.page.Find(t.kind.EditSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr(t.kind.DataAttr, "") == raw
	}).First()
	if control.Length() == 0 {
		return t.open(raw)
	}
	return t.Edit(control)
}

// Cancel closes every form of the kind.
func (t *Toggle) Cancel() {
	t.editing = 0
	t.page.Hide(t.kind.FormSelector)
}

// Fragments renders every row panel of the kind for an out-of-band swap. A page
// without rows of the kind yields no fragments.
func (t *Toggle) Fragments() (string, error) {
	var panels []string
	t.page.Find(t.kind.FormSelector).Each(func(_ int, form *goquery.Selection) {
		panel := form.Closest("[id^='" + strings.TrimPrefix(t.kind.PanelPrefix, "#") + "']")
		if id, ok := panel.Attr("id"); ok {
			panels = append(panels, "#"+id)
		}
	})
	if len(panels) == 0 {
		return "", nil
	}
	return t.page.SwapFragments(panels...)
}

func (t *Toggle) open(raw string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("%w: %s %q", ErrInvalidID, t.kind.DataAttr, raw)
	}
	form := t.kind.Panel(id) + " " + t.kind.FormSelector
	if err := t.page.Require(form); err != nil {
		return err
	}
	t.editing = id
	t.page.Show(form)
	return nil
}

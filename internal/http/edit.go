package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/booklog/internal/dom"
	"github.com/mrlokans/booklog/internal/edittoggle"
)

// EditController opens and closes the inline edit forms of a live page.
type EditController struct {
	pages *LivePages
}

func NewEditController(pages *LivePages) *EditController {
	return &EditController{pages: pages}
}

// Edit handles POST /ui/edit/:kind/edit with the row id in the form.
func (ec *EditController) Edit(c *gin.Context) {
	ec.toggle(c, func(t *edittoggle.Toggle) error {
		return t.EditID(c.PostForm("id"))
	})
}

// Cancel handles POST /ui/edit/:kind/cancel.
func (ec *EditController) Cancel(c *gin.Context) {
	ec.toggle(c, func(t *edittoggle.Toggle) error {
		t.Cancel()
		return nil
	})
}

func (ec *EditController) toggle(c *gin.Context, fn func(t *edittoggle.Toggle) error) {
	kind, ok := edittoggle.KindByName(c.Param("kind"))
	if !ok {
		respondNotFound(c, "edit kind")
		return
	}
	page, ok := currentLivePage(c, ec.pages)
	if !ok {
		return
	}

	fragments, err := page.Toggle(kind.Name, fn)
	switch {
	case errors.Is(err, edittoggle.ErrInvalidID):
		respondBadRequest(c, err.Error())
		return
	case errors.Is(err, dom.ErrElementNotFound):
		respondNotFound(c, kind.Name)
		return
	case err != nil:
		respondInternalError(c, err, "toggle "+kind.Name)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fragments))
}

package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mrlokans/booklog/internal/covers"
	"github.com/mrlokans/booklog/internal/entities"
)

// BookReader looks up saved books.
type BookReader interface {
	GetBookByID(id uint) (*entities.Book, error)
}

// CoversController serves book covers from the local cache.
type CoversController struct {
	cache *covers.Cache
	books BookReader
}

func NewCoversController(cache *covers.Cache, books BookReader) *CoversController {
	return &CoversController{
		cache: cache,
		books: books,
	}
}

// GetCover handles GET /api/books/:id/cover. A cover missing from the cache is
// fetched now; if that fails the client is sent to the original image.
func (cc *CoversController) GetCover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := cc.books.GetBookByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondNotFound(c, "book")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get cover")
		return
	}
	if book.ImageURL == "" {
		respondNotFound(c, "cover")
		return
	}

	path, err := cc.cache.Path(book.ID, book.ImageURL)
	if errors.Is(err, covers.ErrNotCached) {
		path, err = cc.cache.Store(c.Request.Context(), book.ID, book.ImageURL)
	}
	if err != nil || path == "" {
		log.Printf("[COVERS] Serving original cover of book %d: %v", book.ID, err)
		c.Redirect(http.StatusTemporaryRedirect, book.ImageURL)
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.File(path)
}

package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mrlokans/booklog/internal/auth"
)

const formDateLayout = "2006-01-02"

// GetUserID returns the reader the request acts for.
func GetUserID(c *gin.Context) uint {
	return auth.GetUserID(c)
}

// ErrorResponse is the error body of every JSON endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found"})
}

// respondInternalError logs err and hides it from the client.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Printf("Internal error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// respondRepositoryError maps a repository error to a response. Rows of other
// readers are reported as missing.
func respondRepositoryError(c *gin.Context, err error, resource string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondNotFound(c, resource)
		return
	}
	respondInternalError(c, err, resource)
}

// parseIDParam reads a positive id from the path. On failure it responds with 400.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(paramName), 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

// parseFormDate reads a YYYY-MM-DD form value. An empty value yields the zero time.
func parseFormDate(c *gin.Context, field string) (time.Time, bool) {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(formDateLayout, raw)
	if err != nil {
		respondBadRequest(c, "invalid "+field)
		return time.Time{}, false
	}
	return t, true
}

// parseOptionalFormDate is parseFormDate for nullable columns.
func parseOptionalFormDate(c *gin.Context, field string) (*time.Time, bool) {
	t, ok := parseFormDate(c, field)
	if !ok || t.IsZero() {
		return nil, ok
	}
	return &t, true
}

// formBool reads a checkbox.
func formBool(c *gin.Context, field string) bool {
	switch strings.ToLower(c.PostForm(field)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func isHTMXRequest(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// redirectAfterPost sends the browser back to a page after a form submission. HTMX
// requests get HX-Redirect since they do not follow redirects into a full reload.
func redirectAfterPost(c *gin.Context, location string) {
	if isHTMXRequest(c) {
		c.Header("HX-Redirect", location)
		c.Status(http.StatusNoContent)
		return
	}
	c.Redirect(http.StatusSeeOther, location)
}

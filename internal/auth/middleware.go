package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/booklog/internal/config"
	"github.com/mrlokans/booklog/internal/entities"
)

const (
	ContextKeyUserID   = "auth_user_id"
	ContextKeyUsername = "auth_username"
)

// DefaultUserID owns every shelf when authentication is disabled.
const DefaultUserID = uint(0)

// Middleware resolves the current reader of a request.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
	config         config.Auth
	publicPaths    map[string]bool
}

func NewMiddleware(service *Service, sessionManager *SessionManager, cfg config.Auth) *Middleware {
	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
		config:         cfg,
		publicPaths: map[string]bool{
			"/health":      true,
			"/login":       true,
			"/register":    true,
			"/favicon.ico": true,
		},
	}
}

// Handler sets the user of the request, or turns anonymous visitors away from
// everything but the public paths in local mode.
func (m *Middleware) Handler() gin.HandlerFunc {
	if m.config.Mode != config.AuthModeLocal {
		return func(c *gin.Context) {
			c.Set(ContextKeyUserID, DefaultUserID)
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if user := m.sessionUser(c); user != nil {
			c.Set(ContextKeyUserID, user.ID)
			c.Set(ContextKeyUsername, user.Username)
			c.Next()
			return
		}

		if m.isPublicPath(c.Request.URL.Path) {
			c.Set(ContextKeyUserID, DefaultUserID)
			c.Next()
			return
		}

		m.reject(c)
	}
}

func (m *Middleware) sessionUser(c *gin.Context) *entities.User {
	if m.sessionManager == nil {
		return nil
	}
	userID := m.sessionManager.GetUserID(c.Request)
	if userID == 0 {
		return nil
	}
	user, err := m.service.GetUserByID(userID)
	if err != nil {
		return nil
	}
	return user
}

func (m *Middleware) reject(c *gin.Context) {
	loginURL := "/login?next=" + url.QueryEscape(c.Request.URL.Path)

	switch {
	case c.GetHeader("HX-Request") == "true":
		c.Header("HX-Redirect", loginURL)
		c.AbortWithStatus(http.StatusUnauthorized)
	case isAPIRequest(c):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	default:
		c.Redirect(http.StatusFound, loginURL)
		c.Abort()
	}
}

func (m *Middleware) isPublicPath(path string) bool {
	return m.publicPaths[path] || strings.HasPrefix(path, "/static/")
}

func isAPIRequest(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/") ||
		c.Request.URL.Path == "/booksearch" ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}

// GetUserID returns DefaultUserID when nobody is logged in or auth is disabled.
func GetUserID(c *gin.Context) uint {
	if id, ok := c.Get(ContextKeyUserID); ok {
		if userID, ok := id.(uint); ok {
			return userID
		}
	}
	return DefaultUserID
}

func GetUsername(c *gin.Context) string {
	if name, ok := c.Get(ContextKeyUsername); ok {
		if username, ok := name.(string); ok {
			return username
		}
	}
	return ""
}

package auth

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/booklog/internal/config"
)

// HomePath is where readers land after logging in.
const HomePath = "/reviews"

// isLocalPath reports whether path is safe to redirect to.
func isLocalPath(path string) bool {
	if path == "" || !strings.HasPrefix(path, "/") {
		return false
	}
	if strings.HasPrefix(path, "//") || strings.Contains(path, "://") || strings.Contains(path, "\\") {
		return false
	}
	return true
}

func sanitizeRedirectPath(path string) string {
	if isLocalPath(path) {
		return path
	}
	return HomePath
}

// AuthController serves login, logout and registration.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	templates      *template.Template
	config         config.Auth
	rateLimiter    *RateLimiter
}

// NewAuthController parses templates/auth/*.html. Without templates every page
// falls back to JSON.
func NewAuthController(service *Service, sessionManager *SessionManager, templatesPath string, cfg config.Auth) *AuthController {
	tmpl, err := template.ParseGlob(filepath.Join(templatesPath, "auth", "*.html"))
	if err != nil {
		log.Printf("[AUTH] No auth templates loaded: %v", err)
		tmpl = nil
	}

	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		templates:      tmpl,
		config:         cfg,
		rateLimiter:    NewRateLimiter(cfg.MaxLoginAttempts, cfg.RateLimitWindow),
	}
}

// RateLimiter exposes the limiter so its idle clients can be swept.
func (ac *AuthController) RateLimiter() *RateLimiter {
	return ac.rateLimiter
}

func (ac *AuthController) RegisterRoutes(router gin.IRouter) {
	limited := ac.rateLimiter.Middleware()
	router.GET("/login", ac.LoginPage)
	router.POST("/login", limited, ac.Login)
	router.POST("/logout", ac.Logout)
	router.GET("/register", ac.RegisterPage)
	router.POST("/register", limited, ac.Register)
}

func (ac *AuthController) LoginPage(c *gin.Context) {
	if ac.sessionManager.IsAuthenticated(c.Request) {
		c.Redirect(http.StatusFound, HomePath)
		return
	}

	ac.renderTemplate(c, http.StatusOK, "login.html", gin.H{
		"Title":     "Log in",
		"Next":      sanitizeRedirectPath(c.Query("next")),
		"CSRFField": CSRFTokenField(c),
		"Error":     c.Query("error"),
	})
}

func (ac *AuthController) Login(c *gin.Context) {
	login := c.PostForm("username")
	next := sanitizeRedirectPath(c.PostForm("next"))

	user, err := ac.service.Authenticate(login, c.PostForm("password"))
	if err != nil {
		msg := "Invalid username or password"
		if errors.Is(err, ErrAccountLocked) {
			msg = "Account is locked. Please try again later."
		}
		ac.renderTemplate(c, http.StatusUnauthorized, "login.html", gin.H{
			"Title":     "Log in",
			"Next":      next,
			"Username":  login,
			"CSRFField": CSRFTokenField(c),
			"Error":     msg,
		})
		return
	}

	if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
		log.Printf("[AUTH] Failed to create session for %s: %v", user.Username, err)
		ac.renderTemplate(c, http.StatusInternalServerError, "login.html", gin.H{
			"Title":     "Log in",
			"Next":      next,
			"Username":  login,
			"CSRFField": CSRFTokenField(c),
			"Error":     "Failed to create session",
		})
		return
	}

	c.Redirect(http.StatusFound, next)
}

func (ac *AuthController) Logout(c *gin.Context) {
	_ = ac.sessionManager.DestroySession(c.Request)
	c.Redirect(http.StatusFound, "/login")
}

func (ac *AuthController) RegisterPage(c *gin.Context) {
	if ac.sessionManager.IsAuthenticated(c.Request) {
		c.Redirect(http.StatusFound, HomePath)
		return
	}

	ac.renderTemplate(c, http.StatusOK, "register.html", gin.H{
		"Title":     "Register",
		"CSRFField": CSRFTokenField(c),
		"Error":     c.Query("error"),
	})
}

func (ac *AuthController) Register(c *gin.Context) {
	username := c.PostForm("username")
	email := c.PostForm("email")
	password := c.PostForm("password")

	rerender := func(status int, msg string) {
		ac.renderTemplate(c, status, "register.html", gin.H{
			"Title":     "Register",
			"Username":  username,
			"Email":     email,
			"CSRFField": CSRFTokenField(c),
			"Error":     msg,
		})
	}

	if password != c.PostForm("confirm_password") {
		rerender(http.StatusBadRequest, "Passwords do not match")
		return
	}

	user, err := ac.service.Register(username, email, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserExists):
			rerender(http.StatusConflict, "That username or email is already registered")
		case errors.Is(err, ErrUsernameRequired), errors.Is(err, ErrUsernameInvalid),
			errors.Is(err, ErrEmailInvalid), errors.Is(err, ErrPasswordRequired),
			errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong):
			rerender(http.StatusBadRequest, err.Error())
		default:
			log.Printf("[AUTH] Registration of %s failed: %v", username, err)
			rerender(http.StatusInternalServerError, "Failed to create user")
		}
		return
	}

	if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	c.Redirect(http.StatusFound, HomePath)
}

func (ac *AuthController) renderTemplate(c *gin.Context, status int, name string, data gin.H) {
	if ac.templates == nil {
		data["CSRFField"] = GetCSRFToken(c)
		c.JSON(status, data)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := ac.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		log.Printf("[AUTH] Template %s failed: %v", name, err)
	}
}

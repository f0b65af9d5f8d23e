package http

import (
	"fmt"
	"html/template"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/booklog/internal/auth"
	"github.com/mrlokans/booklog/internal/booksearch"
	"github.com/mrlokans/booklog/internal/config"
	"github.com/mrlokans/booklog/internal/covers"
	"github.com/mrlokans/booklog/internal/database"
	"github.com/mrlokans/booklog/internal/database/books"
	"github.com/mrlokans/booklog/internal/database/shelves"
	"github.com/mrlokans/booklog/internal/exporters"
)

// RouterConfig contains all dependencies and configuration needed to create the
// HTTP router.
type RouterConfig struct {
	Database *database.Database
	Books    *books.Repository
	Shelves  *shelves.Repository
	Exporter exporters.ShelfExporter

	// Catalog answers GET /booksearch; Fetcher is what live pages search through.
	// They are the same value unless a remote search endpoint is configured.
	Catalog       booksearch.Fetcher
	Fetcher       booksearch.Fetcher
	WidgetOptions []booksearch.Option
	LivePages     *LivePageStore

	// Authentication
	AuthConfig     config.Auth
	AuthService    *auth.Service
	AuthController *auth.AuthController
	SessionManager *auth.SessionManager
	CSRFSecret     []byte

	TemplatesPath string
	StaticPath    string

	CoverCache *covers.Cache
	TaskClient TaskQueue

	Version string
}

// templateFuncs are available to every page template.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// date formats a time.Time or *time.Time for date inputs; unset dates are "".
		"date": func(v any) string {
			switch t := v.(type) {
			case time.Time:
				if t.IsZero() {
					return ""
				}
				return t.Format(formDateLayout)
			case *time.Time:
				if t == nil || t.IsZero() {
					return ""
				}
				return t.Format(formDateLayout)
			}
			return ""
		},
		"coverURL": func(bookID uint) string {
			return fmt.Sprintf("/api/books/%d/cover", bookID)
		},
	}
}

// LoadTemplates parses the page templates under path.
func LoadTemplates(path string) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(templateFuncs()).ParseGlob(filepath.Join(path, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to load templates from %s: %w", path, err)
	}
	return tmpl, nil
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	tmpl, err := LoadTemplates(cfg.TemplatesPath)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(auth.SecurityHeadersMiddleware())

	// Sessions carry the live page id in every auth mode, so they always load first.
	router.Use(cfg.SessionManager.SessionLoadSave())
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.AuthConfig.SecureCookies))
	}
	router.Use(auth.NewMiddleware(cfg.AuthService, cfg.SessionManager, cfg.AuthConfig).Handler())

	router.SetHTMLTemplate(tmpl)
	if cfg.StaticPath != "" {
		router.Static("/static", cfg.StaticPath)
	}

	authEnabled := cfg.AuthService != nil && cfg.AuthService.IsAuthEnabled()
	if authEnabled && cfg.AuthController != nil {
		cfg.AuthController.RegisterRoutes(router)
	}

	livePages := NewLivePages(cfg.LivePages, cfg.SessionManager, cfg.Fetcher, cfg.WidgetOptions...)

	health := NewHealthController(cfg.Database, cfg.LivePages, cfg.CoverCache, cfg.Version)
	router.GET("/health", health.Status)

	search := NewBookSearchController(cfg.Catalog, livePages)
	router.GET("/booksearch", search.Backend)
	router.POST("/ui/booksearch/search", search.Search)
	router.POST("/ui/booksearch/select", search.Select)

	edit := NewEditController(livePages)
	router.POST("/ui/edit/:kind/edit", edit.Edit)
	router.POST("/ui/edit/:kind/cancel", edit.Cancel)

	var taskQueue TaskEnqueuer
	if cfg.TaskClient != nil {
		taskQueue = cfg.TaskClient
		NewTasksController(cfg.TaskClient).RegisterRoutes(router)
	}
	NewShelvesController(cfg.Books, cfg.Shelves, taskQueue, tmpl, livePages, authEnabled).RegisterRoutes(router)

	exporter := cfg.Exporter
	if exporter == nil {
		exporter = exporters.NewCSVExporter()
	}
	NewExportController(cfg.Shelves, exporter).RegisterRoutes(router)

	if cfg.CoverCache != nil {
		router.GET("/api/books/:id/cover", NewCoversController(cfg.CoverCache, cfg.Books).GetCover)
	}

	return router, nil
}

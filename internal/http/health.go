package http

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/booklog/internal/covers"
	"github.com/mrlokans/booklog/internal/database"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// HealthController reports on the database, the live pages and the cover cache.
// Only a broken database makes the service unhealthy; a missing cover directory
// degrades it, since covers then fall back to the catalog links.
type HealthController struct {
	db      *database.Database
	pages   *LivePageStore
	covers  *covers.Cache
	version string
}

func NewHealthController(db *database.Database, pages *LivePageStore, cache *covers.Cache, version string) *HealthController {
	return &HealthController{
		db:      db,
		pages:   pages,
		covers:  cache,
		version: version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := statusHealthy

	if h.db == nil {
		checks["database"] = "not configured"
	} else if err := h.pingDatabase(c); err != nil {
		checks["database"] = "error: " + err.Error()
		status = statusUnhealthy
	} else {
		checks["database"] = "ok"
	}

	if h.pages != nil {
		checks["live_pages"] = strconv.Itoa(h.pages.Len())
	}

	if h.covers != nil {
		if info, err := os.Stat(h.covers.Dir()); err != nil || !info.IsDir() {
			checks["covers"] = "missing: " + h.covers.Dir()
			if status == statusHealthy {
				status = statusDegraded
			}
		} else {
			checks["covers"] = "ok"
		}
	}

	statusCode := http.StatusOK
	if status == statusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	})
}

func (h *HealthController) pingDatabase(c *gin.Context) error {
	sqlDB, err := h.db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(c.Request.Context())
}

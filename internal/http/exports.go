package http

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/booklog/internal/database/shelves"
	"github.com/mrlokans/booklog/internal/exporters"
)

// ExportController downloads the current reader's shelves as CSV.
type ExportController struct {
	shelves  *shelves.Repository
	exporter exporters.ShelfExporter
}

func NewExportController(shelf *shelves.Repository, exporter exporters.ShelfExporter) *ExportController {
	return &ExportController{
		shelves:  shelf,
		exporter: exporter,
	}
}

func (ec *ExportController) RegisterRoutes(router gin.IRouter) {
	router.GET("/export/reviews.csv", ec.Reviews)
	router.GET("/export/reading.csv", ec.Readings)
	router.GET("/export/plans.csv", ec.Plans)
}

func (ec *ExportController) Reviews(c *gin.Context) {
	reviews, err := ec.shelves.ListReviews(GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "export reviews")
		return
	}
	var buf bytes.Buffer
	result, err := ec.exporter.ExportReviews(&buf, reviews)
	ec.send(c, "reviews", &buf, result, err)
}

func (ec *ExportController) Readings(c *gin.Context) {
	readings, err := ec.shelves.ListReadings(GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "export reading")
		return
	}
	var buf bytes.Buffer
	result, err := ec.exporter.ExportReadings(&buf, readings)
	ec.send(c, "reading", &buf, result, err)
}

func (ec *ExportController) Plans(c *gin.Context) {
	plans, err := ec.shelves.ListPlans(GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "export plans")
		return
	}
	var buf bytes.Buffer
	result, err := ec.exporter.ExportPlans(&buf, plans)
	ec.send(c, "plans", &buf, result, err)
}

// send writes the whole export only once it is complete, so a failed export never
// reaches the client as a truncated file.
func (ec *ExportController) send(c *gin.Context, name string, buf *bytes.Buffer, result exporters.ExportResult, err error) {
	if err != nil {
		respondInternalError(c, err, "export "+name)
		return
	}
	log.Printf("Exported %d %s rows for user %d", result.RowsWritten, name, GetUserID(c))

	filename := fmt.Sprintf("booklog-%s-%s.csv", name, time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

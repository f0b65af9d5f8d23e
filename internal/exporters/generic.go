package exporters

import (
	"io"

	"github.com/mrlokans/booklog/internal/entities"
)

// ShelfExporter writes one user's shelves in some file format.
type ShelfExporter interface {
	ExportReviews(w io.Writer, reviews []entities.Review) (ExportResult, error)
	ExportReadings(w io.Writer, readings []entities.Reading) (ExportResult, error)
	ExportPlans(w io.Writer, plans []entities.Plan) (ExportResult, error)
}

type ExportResult struct {
	RowsWritten int `json:"rows_written"`
}

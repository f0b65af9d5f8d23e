package exporters

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mrlokans/booklog/internal/entities"
)

const dateLayout = "2006-01-02"

// BookColumns follow the id column of every export.
var BookColumns = []string{"title", "author", "year", "source_id", "image_url", "isbn_10", "isbn_13"}

// CSVExporter writes shelves as UTF-8 CSV with a header row.
type CSVExporter struct{}

var _ ShelfExporter = CSVExporter{}

func NewCSVExporter() CSVExporter {
	return CSVExporter{}
}

func (CSVExporter) ExportReviews(w io.Writer, reviews []entities.Review) (ExportResult, error) {
	header := columns("review_id", "review_text", "date_read")
	return writeRows(w, header, len(reviews), func(i int) []string {
		r := reviews[i]
		return row(r.ID, r.Book, r.ReviewText, formatDate(r.DateRead))
	})
}

func (CSVExporter) ExportReadings(w io.Writer, readings []entities.Reading) (ExportResult, error) {
	header := columns("reading_id", "note", "date_started")
	return writeRows(w, header, len(readings), func(i int) []string {
		r := readings[i]
		started := ""
		if r.DateStarted != nil {
			started = formatDate(*r.DateStarted)
		}
		return row(r.ID, r.Book, r.Note, started)
	})
}

func (CSVExporter) ExportPlans(w io.Writer, plans []entities.Plan) (ExportResult, error) {
	header := columns("plan_id", "note", "date_added")
	return writeRows(w, header, len(plans), func(i int) []string {
		p := plans[i]
		return row(p.ID, p.Book, p.Note, formatDate(p.DateAdded))
	})
}

func columns(id string, trailing ...string) []string {
	out := make([]string, 0, 1+len(BookColumns)+len(trailing))
	out = append(out, id)
	out = append(out, BookColumns...)
	return append(out, trailing...)
}

func row(id uint, book entities.Book, trailing ...string) []string {
	out := []string{
		strconv.FormatUint(uint64(id), 10),
		book.Title,
		book.Author,
		book.Year,
		book.SourceID,
		book.ImageURL,
		book.ISBN10,
		book.ISBN13,
	}
	return append(out, trailing...)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func writeRows(w io.Writer, header []string, n int, record func(i int) []string) (ExportResult, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return ExportResult{}, fmt.Errorf("write csv header: %w", err)
	}

	result := ExportResult{}
	for i := 0; i < n; i++ {
		if err := cw.Write(record(i)); err != nil {
			return result, fmt.Errorf("write csv row %d: %w", i, err)
		}
		result.RowsWritten++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return result, fmt.Errorf("flush csv: %w", err)
	}
	return result, nil
}

package booksearch

import (
	"bytes"
	"encoding/json"
)

// BookResult is one record of a search response. ID is opaque and only assumed unique
// within a single batch. Empty strings mean "absent".
type BookResult struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Year        string          `json:"year"`
	ImageURL    string          `json:"image_url"`
	ISBN10      string          `json:"isbn10"`
	ISBN13      string          `json:"isbn13"`
	Identifiers json.RawMessage `json:"identifiers,omitempty"`
}

// SelectedBook is the record the user picked, in the shape the form fields need.
type SelectedBook struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Year        string `json:"year"`
	ImageURL    string `json:"image_url"`
	Identifiers string `json:"identifiers"`
}

// SearchResponse is the body of GET <endpoint>?search=<query>.
type SearchResponse struct {
	Books []BookResult `json:"books"`
}

// IdentifierLine composes the ISBN line shown under a result:
// "isbn13 / isbn10", either one alone, or "" when both are absent.
func (b BookResult) IdentifierLine() string {
	switch {
	case b.ISBN13 != "" && b.ISBN10 != "":
		return b.ISBN13 + " / " + b.ISBN10
	case b.ISBN13 != "":
		return b.ISBN13
	default:
		return b.ISBN10
	}
}

// Selected converts the result into the record written to the form.
func (b BookResult) Selected() SelectedBook {
	return SelectedBook{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Year:        b.Year,
		ImageURL:    b.ImageURL,
		Identifiers: identifiersText(b.Identifiers),
	}
}

// Byline is the second metadata line of the preview: "author, year", either one
// alone, or "" when both are absent.
func (s SelectedBook) Byline() string {
	switch {
	case s.Author != "" && s.Year != "":
		return s.Author + ", " + s.Year
	case s.Author != "":
		return s.Author
	default:
		return s.Year
	}
}

// identifiersText keeps the identifiers blob verbatim, except that a JSON string is
// unquoted so a backend that already serialized the blob is not double encoded.
func identifiersText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

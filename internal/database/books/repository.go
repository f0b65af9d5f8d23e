// Package books provides database operations for shared book records.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, created, err := repo.CreateOrGet(books.Fields{SourceID: "X1", Title: "Dune"})
package books

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/booklog/internal/entities"
)

// ErrSourceIDRequired is returned when a book has no catalog id.
var ErrSourceIDRequired = errors.New("book source id is required")

// Fields are the values the add forms submit for a book.
type Fields struct {
	SourceID    string
	Title       string
	Author      string
	Year        string
	ImageURL    string
	Identifiers string
	ISBN10      string
	ISBN13      string
}

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateOrGet returns the book with f.SourceID, creating it from f when it does not
// exist yet. An existing book is returned unchanged.
func (r *Repository) CreateOrGet(f Fields) (*entities.Book, bool, error) {
	sourceID := strings.TrimSpace(f.SourceID)
	if sourceID == "" {
		return nil, false, ErrSourceIDRequired
	}

	var existing entities.Book
	err := r.db.Where("source_id = ?", sourceID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up book %s: %w", sourceID, err)
	}

	identifiers := strings.TrimSpace(f.Identifiers)
	if identifiers == "" {
		identifiers = "[]"
	}
	isbn10, isbn13 := f.ISBN10, f.ISBN13
	if isbn10 == "" || isbn13 == "" {
		fromIdents10, fromIdents13 := isbnsFromIdentifiers(identifiers)
		if isbn10 == "" {
			isbn10 = fromIdents10
		}
		if isbn13 == "" {
			isbn13 = fromIdents13
		}
	}

	book := &entities.Book{
		SourceID:        sourceID,
		Title:           f.Title,
		Author:          f.Author,
		Year:            f.Year,
		ImageURL:        f.ImageURL,
		IdentifiersJSON: identifiers,
		ISBN10:          isbn10,
		ISBN13:          isbn13,
	}
	if err := r.db.Create(book).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create book %s: %w", sourceID, err)
	}
	return book, true, nil
}

// GetBookByID retrieves a book by its ID.
func (r *Repository) GetBookByID(id uint) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// GetBookBySourceID retrieves a book by its catalog id.
func (r *Repository) GetBookBySourceID(sourceID string) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.Where("source_id = ?", sourceID).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// GetBooksWithCovers returns every book that has a remote cover image.
func (r *Repository) GetBooksWithCovers() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Where("image_url <> ''").Order("id ASC").Find(&books).Error
	return books, err
}

// isbnsFromIdentifiers reads ISBN_10 and ISBN_13 from a Google Books style
// industryIdentifiers array. Anything unparseable yields no ISBNs.
func isbnsFromIdentifiers(raw string) (isbn10, isbn13 string) {
	var idents []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	}
	if err := json.Unmarshal([]byte(raw), &idents); err != nil {
		return "", ""
	}
	for _, ident := range idents {
		switch ident.Type {
		case "ISBN_10":
			if isbn10 == "" {
				isbn10 = ident.Identifier
			}
		case "ISBN_13":
			if isbn13 == "" {
				isbn13 = ident.Identifier
			}
		}
	}
	return isbn10, isbn13
}

package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/booklog/internal/entities"
)

// BookStore is the part of the books repository the cover tasks read.
type BookStore interface {
	GetBookByID(id uint) (*entities.Book, error)
	GetBooksWithCovers() ([]entities.Book, error)
}

// CoverStore downloads a cover into the local cache.
type CoverStore interface {
	Store(ctx context.Context, bookID uint, imageURL string) (string, error)
}

// CacheCoverTask copies the cover of one saved book into the local cache.
type CacheCoverTask struct {
	BookID uint `json:"book_id"`
}

func (t CacheCoverTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cache_cover",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
		},
	}
}

// CacheCoverProcessor caches the cover of task.BookID. Books without a cover are
// skipped.
func CacheCoverProcessor(books BookStore, covers CoverStore) backlite.QueueProcessor[CacheCoverTask] {
	return func(ctx context.Context, task CacheCoverTask) error {
		if books == nil || covers == nil {
			return errors.New("cover cache not configured")
		}

		book, err := books.GetBookByID(task.BookID)
		if err != nil {
			return fmt.Errorf("load book %d: %w", task.BookID, err)
		}
		if book.ImageURL == "" {
			return nil
		}

		path, err := covers.Store(ctx, book.ID, book.ImageURL)
		if err != nil {
			return err
		}
		log.Printf("[TASK] Cached cover of book %d (%s) at %s", book.ID, book.Title, path)
		return nil
	}
}

func NewCacheCoverQueue(books BookStore, covers CoverStore) backlite.Queue {
	return backlite.NewQueue(CacheCoverProcessor(books, covers))
}

// CacheAllCoversTask walks every saved book with a cover and caches what is missing.
type CacheAllCoversTask struct{}

func (t CacheAllCoversTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cache_all_covers",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
		},
	}
}

// CacheAllCoversProcessor keeps going past individual failures and reports how many
// covers it could not fetch.
func CacheAllCoversProcessor(books BookStore, covers CoverStore) backlite.QueueProcessor[CacheAllCoversTask] {
	return func(ctx context.Context, _ CacheAllCoversTask) error {
		if books == nil || covers == nil {
			return errors.New("cover cache not configured")
		}

		all, err := books.GetBooksWithCovers()
		if err != nil {
			return fmt.Errorf("list books with covers: %w", err)
		}

		failed := 0
		for _, book := range all {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := covers.Store(ctx, book.ID, book.ImageURL); err != nil {
				log.Printf("[TASK] Failed to cache cover of book %d: %v", book.ID, err)
				failed++
			}
		}

		log.Printf("[TASK] Cover sweep complete: %d books, %d failed", len(all), failed)
		return nil
	}
}

func NewCacheAllCoversQueue(books BookStore, covers CoverStore) backlite.Queue {
	return backlite.NewQueue(CacheAllCoversProcessor(books, covers))
}

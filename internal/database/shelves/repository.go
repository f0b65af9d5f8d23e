// Package shelves provides database operations for the per-user lists: reviews of
// finished books, books currently being read and books planned for later.
//
// Every operation is scoped to a user. Rows owned by somebody else behave exactly
// like rows that do not exist and yield gorm.ErrRecordNotFound.
package shelves

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/booklog/internal/entities"
)

var (
	ErrAlreadyReading = errors.New("book is already being read")
	ErrAlreadyPlanned = errors.New("book is already planned")
)

// ReviewInput carries the fields of the review and mark-as-read forms.
// A zero DateRead means today.
type ReviewInput struct {
	ReviewText   string
	DateRead     time.Time
	DidNotFinish bool
	IsFavourite  bool
}

// Repository handles review, reading and plan database operations.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a new shelves repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) today() time.Time {
	n := r.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

func (r *Repository) reviewFromInput(in ReviewInput) entities.Review {
	dateRead := in.DateRead
	if dateRead.IsZero() {
		dateRead = r.today()
	}
	return entities.Review{
		ReviewText:   in.ReviewText,
		DateRead:     dateRead,
		DidNotFinish: in.DidNotFinish,
		IsFavourite:  in.IsFavourite,
	}
}

// Reviews

func (r *Repository) AddReview(userID, bookID uint, in ReviewInput) (*entities.Review, error) {
	review := r.reviewFromInput(in)
	review.UserID = userID
	review.BookID = bookID
	if err := r.db.Create(&review).Error; err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	return r.GetReview(userID, review.ID)
}

func (r *Repository) GetReview(userID, id uint) (*entities.Review, error) {
	var review entities.Review
	err := r.db.Preload("Book").Where("id = ? AND user_id = ?", id, userID).First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// ListReviews returns the user's reviews, most recently read first.
func (r *Repository) ListReviews(userID uint) ([]entities.Review, error) {
	var reviews []entities.Review
	err := r.db.Preload("Book").
		Where("user_id = ?", userID).
		Order("date_read DESC, id DESC").
		Find(&reviews).Error
	return reviews, err
}

func (r *Repository) UpdateReview(userID, id uint, in ReviewInput) (*entities.Review, error) {
	review, err := r.GetReview(userID, id)
	if err != nil {
		return nil, err
	}
	updated := r.reviewFromInput(in)
	err = r.db.Model(review).Select("review_text", "date_read", "did_not_finish", "is_favourite").
		Updates(map[string]any{
			"review_text":    updated.ReviewText,
			"date_read":      updated.DateRead,
			"did_not_finish": updated.DidNotFinish,
			"is_favourite":   updated.IsFavourite,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update review %d: %w", id, err)
	}
	return r.GetReview(userID, id)
}

func (r *Repository) DeleteReview(userID, id uint) error {
	return deleteOwned(r.db, &entities.Review{}, userID, id)
}

// Reading

// AddReading starts reading a book. A nil dateStarted leaves the date unknown.
func (r *Repository) AddReading(userID, bookID uint, note string, dateStarted *time.Time) (*entities.Reading, error) {
	var reading entities.Reading
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		reading, err = createReading(tx, userID, bookID, note, dateStarted)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetReading(userID, reading.ID)
}

func (r *Repository) GetReading(userID, id uint) (*entities.Reading, error) {
	var reading entities.Reading
	err := r.db.Preload("Book").Where("id = ? AND user_id = ?", id, userID).First(&reading).Error
	if err != nil {
		return nil, err
	}
	return &reading, nil
}

func (r *Repository) ListReadings(userID uint) ([]entities.Reading, error) {
	var readings []entities.Reading
	err := r.db.Preload("Book").
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&readings).Error
	return readings, err
}

func (r *Repository) UpdateReading(userID, id uint, note string, dateStarted *time.Time) (*entities.Reading, error) {
	reading, err := r.GetReading(userID, id)
	if err != nil {
		return nil, err
	}
	err = r.db.Model(reading).Select("note", "date_started").Updates(map[string]any{
		"note":         note,
		"date_started": dateStarted,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update reading %d: %w", id, err)
	}
	return r.GetReading(userID, id)
}

func (r *Repository) DeleteReading(userID, id uint) error {
	return deleteOwned(r.db, &entities.Reading{}, userID, id)
}

// MarkReadingAsRead turns a reading entry into a review of the same book.
func (r *Repository) MarkReadingAsRead(userID, readingID uint, in ReviewInput) (*entities.Review, error) {
	review := r.reviewFromInput(in)
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var reading entities.Reading
		if err := tx.Where("id = ? AND user_id = ?", readingID, userID).First(&reading).Error; err != nil {
			return err
		}
		review.UserID = userID
		review.BookID = reading.BookID
		if err := tx.Create(&review).Error; err != nil {
			return fmt.Errorf("failed to create review: %w", err)
		}
		return tx.Delete(&reading).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetReview(userID, review.ID)
}

// Plans

// AddPlan plans a book. A zero dateAdded means today.
func (r *Repository) AddPlan(userID, bookID uint, note string, dateAdded time.Time) (*entities.Plan, error) {
	if dateAdded.IsZero() {
		dateAdded = r.today()
	}
	plan := entities.Plan{Note: note, DateAdded: dateAdded, BookID: bookID, UserID: userID}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&entities.Plan{}).
			Where("book_id = ? AND user_id = ?", bookID, userID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyPlanned
		}
		return tx.Create(&plan).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetPlan(userID, plan.ID)
}

func (r *Repository) GetPlan(userID, id uint) (*entities.Plan, error) {
	var plan entities.Plan
	err := r.db.Preload("Book").Where("id = ? AND user_id = ?", id, userID).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListPlans returns the user's plans, most recently added first.
func (r *Repository) ListPlans(userID uint) ([]entities.Plan, error) {
	var plans []entities.Plan
	err := r.db.Preload("Book").
		Where("user_id = ?", userID).
		Order("date_added DESC, id DESC").
		Find(&plans).Error
	return plans, err
}

func (r *Repository) UpdatePlan(userID, id uint, note string, dateAdded time.Time) (*entities.Plan, error) {
	plan, err := r.GetPlan(userID, id)
	if err != nil {
		return nil, err
	}
	if dateAdded.IsZero() {
		dateAdded = plan.DateAdded
	}
	err = r.db.Model(plan).Select("note", "date_added").Updates(map[string]any{
		"note":       note,
		"date_added": dateAdded,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update plan %d: %w", id, err)
	}
	return r.GetPlan(userID, id)
}

func (r *Repository) DeletePlan(userID, id uint) error {
	return deleteOwned(r.db, &entities.Plan{}, userID, id)
}

// MarkPlanAsRead turns a plan into a review of the same book.
func (r *Repository) MarkPlanAsRead(userID, planID uint, in ReviewInput) (*entities.Review, error) {
	review := r.reviewFromInput(in)
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var plan entities.Plan
		if err := tx.Where("id = ? AND user_id = ?", planID, userID).First(&plan).Error; err != nil {
			return err
		}
		review.UserID = userID
		review.BookID = plan.BookID
		if err := tx.Create(&review).Error; err != nil {
			return fmt.Errorf("failed to create review: %w", err)
		}
		return tx.Delete(&plan).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetReview(userID, review.ID)
}

// MovePlanToReading starts reading a planned book, keeping the plan's note.
func (r *Repository) MovePlanToReading(userID, planID uint, dateStarted *time.Time) (*entities.Reading, error) {
	var reading entities.Reading
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var plan entities.Plan
		if err := tx.Where("id = ? AND user_id = ?", planID, userID).First(&plan).Error; err != nil {
			return err
		}
		var err error
		reading, err = createReading(tx, userID, plan.BookID, plan.Note, dateStarted)
		if err != nil {
			return err
		}
		return tx.Delete(&plan).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetReading(userID, reading.ID)
}

func createReading(tx *gorm.DB, userID, bookID uint, note string, dateStarted *time.Time) (entities.Reading, error) {
	var count int64
	err := tx.Model(&entities.Reading{}).
		Where("book_id = ? AND user_id = ?", bookID, userID).
		Count(&count).Error
	if err != nil {
		return entities.Reading{}, err
	}
	if count > 0 {
		return entities.Reading{}, ErrAlreadyReading
	}
	reading := entities.Reading{Note: note, DateStarted: dateStarted, BookID: bookID, UserID: userID}
	if err := tx.Create(&reading).Error; err != nil {
		return entities.Reading{}, fmt.Errorf("failed to create reading: %w", err)
	}
	return reading, nil
}

func deleteOwned(db *gorm.DB, model any, userID, id uint) error {
	result := db.Where("id = ? AND user_id = ?", id, userID).Delete(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

package shelves

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/booklog/internal/entities"
)

type fixture struct {
	repo  *Repository
	db    *gorm.DB
	alice uint
	bob   uint
	dune  uint
	emma  uint
}

func setupTestDB(t *testing.T) (*fixture, func()) {
	dbPath := "./test_shelves_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.User{}, &entities.Book{}, &entities.Review{}, &entities.Reading{}, &entities.Plan{})
	require.NoError(t, err)

	alice := entities.User{Username: "alice"}
	bob := entities.User{Username: "bob"}
	dune := entities.Book{Title: "Dune", Author: "Frank Herbert", SourceID: "X1"}
	emma := entities.Book{Title: "Emma", Author: "Jane Austen", SourceID: "E1"}
	require.NoError(t, db.Create(&alice).Error)
	require.NoError(t, db.Create(&bob).Error)
	require.NoError(t, db.Create(&dune).Error)
	require.NoError(t, db.Create(&emma).Error)

	repo := NewRepository(db)
	repo.now = func() time.Time { return time.Date(2024, 3, 9, 17, 30, 0, 0, time.UTC) }

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return &fixture{repo: repo, db: db, alice: alice.ID, bob: bob.ID, dune: dune.ID, emma: emma.ID}, cleanup
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestReviews_CRUD(t *testing.T) {
	f, cleanup := setupTestDB(t)
	defer cleanup()

	review, err := f.repo.AddReview(f.alice, f.dune, ReviewInput{ReviewText: "Spice!", IsFavourite: true})
	require.NoError(t, err)
	assert.Equal(t, "Dune", review.Book.Title)
	assert.True(t, review.DateRead.Equal(day(2024, 3, 9)))
	assert.True(t, review.IsFavourite)

	updated, err := f.repo.UpdateReview(f.alice, review.ID, ReviewInput{
		ReviewText:   "Too long",
		DateRead:     day(2024, 1, 2),
		DidNotFinish: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Too long", updated.ReviewText)
	assert.True(t, updated.DidNotFinish)
	assert.False(t, updated.IsFavourite)
	assert.True(t, updated.DateRead.Equal(day(2024, 1, 2)))

	require.NoError(t, f.repo.DeleteReview(f.alice, review.ID))
	_, err = f.repo.GetReview(f.alice, review.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestReviews_ScopedToUser(t *testing.T) {
	f, cleanup := setupTestDB(t)
	defer cleanup()

	review, err := f.repo.AddReview(f.alice, f.dune, ReviewInput{ReviewText: "mine"})
	require.NoError(t, err)

	_, err = f.repo.GetReview(f.bob, review.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = f.repo.UpdateReview(f.bob, review.ID, ReviewInput{ReviewText: "hijacked"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = f.repo.DeleteReview(f.bob, review.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	bobs, err := f.repo.ListReviews(f.bob)
	require.NoError(t, err)
	assert.Empty(t, bobs)

	stored, err := f.repo.GetReview(f.alice, review.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", stored.ReviewText)
}

func TestListReviews_Order(t *testing.T) {
	f, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := f.repo.AddReview(f.alice, f.dune, ReviewInput{DateRead: day(2023, 5, 1)})
	require.NoError(t, err)
	_, err = f.repo.AddReview(f.alice, f.emma, ReviewInput{DateRead: day(2024, 2, 1)})
	require.NoError(t, err)

	reviews, err := f.repo.ListReviews(f.alice)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "Emma", reviews[0].Book.Title)
	assert.Equal(t, "Dune", reviews[1].Book.Title)
}

func TestReading_UniquePerBookAndUser(t *testing.T) {
	f, cleanup := setupTestDB(t)
	defer cleanup()

	started := day(2024, 3, 1)
	reading, err := f.repo.AddReading(f.alice, f.dune, "page 40", &started)
	require.NoError(t, err)
	assert.Equal(t, "Dune", reading.Book.Title)
	require.NotNil(t, reading.DateStarted)

	_, err = f.repo.AddReading(f.alice, f.dune, "again", nil)
	assert.ErrorIs(t, err, ErrAlreadyReading)

	other, err := f.repo.AddReading(f.bob, f.dune, "", nil)
	require.NoError(t, err)
	assert.Nil(t, other.DateStarted)
}

func TestReading_UpdateAndDelete(t *testing.T) {
	f, cleanup := setupTestDB(t)
	defer cleanup()

	reading, err := f.repo.AddReading(f.alice, f.dune, "page 40", nil)
	require.NoError(t, err)

	started := day(2024, 2, 20)
	updated, err := f.repo.UpdateReading(f.alice, reading.ID, "page 120", &started)
	require.NoError(t, err)
	assert.Equal(t, "page 120", updated.Note)
	require.NotNil(t, updated.DateStarted)

	_, err = f.repo.UpdateReading(f.bob, reading.ID, "nope", nil)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, f.repo.DeleteReading(f.alice, reading.ID))
	readings, err := f.repo.ListReadings(f.alice)
	require.NoError(t, err)
	assert.Empty(t, readings)
}

func TestMarkReadingAsRead(t *testing.T) {
	f, cleanup := setupTestDB(t)
	defer cleanup()

	reading, err := f.repo.AddReading(f.alice, f.dune, "", nil)
	require.NoError(t, err)

	review, err := f.repo.MarkReadingAsRead(f.alice, reading.ID, ReviewInput{ReviewText: "done"})
	require.NoError(t, err)
	assert.Equal(t, f.dune, review.BookID)
	assert.Equal(t, "done", review.ReviewText)
	assert.True(t, review.DateRead.Equal(day(2024, 3, 9)))

	_, err = f.repo.GetReading(f.alice, reading.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMarkReadingAsRead_OtherUser(t *testing.T) {
	f, cleanup := setupTestDB(t)
	defer cleanup()

	reading, err := f.repo.AddReading(f.alice, f.dune, "", nil)
	require.NoError(t, err)

	_, err = f.repo.MarkReadingAsRead(f.bob, reading.ID, ReviewInput{})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	reviews, err := f.repo.ListReviews(f.bob)
	require.NoError(t, err)
	assert.Empty(t, reviews)

	_, err = f.repo.GetReading(f.alice, reading.ID)
	assert.NoError(t, err)
}

func TestPlans_CRUD(t *testing.T) {
	f, cleanup := setupTestDB(t)
	defer cleanup()

	plan, err := f.repo.AddPlan(f.alice, f.emma, "after Dune", time.Time{})
	require.NoError(t, err)
	assert.True(t, plan.DateAdded.Equal(day(2024, 3, 9)))
	assert.Equal(t, "Emma", plan.Book.Title)

	_, err = f.repo.AddPlan(f.alice, f.emma, "twice", time.Time{})
	assert.ErrorIs(t, err, ErrAlreadyPlanned)

	updated, err := f.repo.UpdatePlan(f.alice, plan.ID, "soon", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "soon", updated.Note)
	assert.True(t, updated.DateAdded.Equal(day(2024, 3, 9)))

	err = f.repo.DeletePlan(f.bob, plan.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, f.repo.DeletePlan(f.alice, plan.ID))
	plans, err := f.repo.ListPlans(f.alice)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestMarkPlanAsRead(t *testing.T) {
	f, cleanup := setupTestDB(t)
	defer cleanup()

	plan, err := f.repo.AddPlan(f.alice, f.emma, "", time.Time{})
	require.NoError(t, err)

	review, err := f.repo.MarkPlanAsRead(f.alice, plan.ID, ReviewInput{ReviewText: "lovely", DateRead: day(2024, 3, 5)})
	require.NoError(t, err)
	assert.Equal(t, "Emma", review.Book.Title)
	assert.True(t, review.DateRead.Equal(day(2024, 3, 5)))

	plans, err := f.repo.ListPlans(f.alice)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestMovePlanToReading(t *testing.T) {
	f, cleanup := setupTestDB(t)
	defer cleanup()

	plan, err := f.repo.AddPlan(f.alice, f.emma, "recommended by Bob", time.Time{})
	require.NoError(t, err)

	reading, err := f.repo.MovePlanToReading(f.alice, plan.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "recommended by Bob", reading.Note)
	assert.Equal(t, f.emma, reading.BookID)

	_, err = f.repo.GetPlan(f.alice, plan.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMovePlanToReading_AlreadyReadingKeepsPlan(t *testing.T) {
	f, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := f.repo.AddReading(f.alice, f.emma, "", nil)
	require.NoError(t, err)
	plan, err := f.repo.AddPlan(f.alice, f.emma, "", time.Time{})
	require.NoError(t, err)

	_, err = f.repo.MovePlanToReading(f.alice, plan.ID, nil)
	assert.ErrorIs(t, err, ErrAlreadyReading)

	_, err = f.repo.GetPlan(f.alice, plan.ID)
	assert.NoError(t, err)
}

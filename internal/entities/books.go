package entities

import (
	"encoding/json"
	"time"
)

type User struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Username         string     `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email            string     `gorm:"size:255" json:"email"`
	PasswordHash     string     `gorm:"size:128" json:"-"`
	FailedLoginCount int        `gorm:"default:0" json:"-"`
	LockedUntil      *time.Time `json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Book is shared by every user; SourceID is the catalog volume id it was picked from.
type Book struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"index;size:500" json:"title"`
	Author          string    `gorm:"size:500" json:"author"`
	Year            string    `gorm:"size:4" json:"year"`
	IdentifiersJSON string    `gorm:"column:identifiers_json;type:text" json:"-"`
	SourceID        string    `gorm:"uniqueIndex;size:64;not null" json:"source_id"`
	ImageURL        string    `gorm:"size:500" json:"image_url"`
	ISBN10          string    `gorm:"column:isbn_10;size:25" json:"isbn_10"`
	ISBN13          string    `gorm:"column:isbn_13;size:25" json:"isbn_13"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Identifiers returns the stored identifiers blob, or an empty array.
func (b Book) Identifiers() json.RawMessage {
	if b.IdentifiersJSON == "" {
		return json.RawMessage("[]")
	}
	return json.RawMessage(b.IdentifiersJSON)
}

type Review struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ReviewText   string    `gorm:"type:text" json:"review_text"`
	DateRead     time.Time `gorm:"index" json:"date_read"`
	DidNotFinish bool      `gorm:"default:false" json:"did_not_finish"`
	IsFavourite  bool      `gorm:"default:false" json:"is_favourite"`
	BookID       uint      `gorm:"index" json:"book_id"`
	UserID       uint      `gorm:"index" json:"user_id"`
	Book         Book      `gorm:"foreignKey:BookID" json:"book"`
	User         User      `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Reading is a book the user is currently reading. One per (book, user).
type Reading struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Note        string     `gorm:"type:text" json:"note"`
	DateStarted *time.Time `json:"date_started,omitempty"`
	BookID      uint       `gorm:"uniqueIndex:idx_reading_book_user" json:"book_id"`
	UserID      uint       `gorm:"uniqueIndex:idx_reading_book_user;index" json:"user_id"`
	Book        Book       `gorm:"foreignKey:BookID" json:"book"`
	User        User       `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Plan is a book the user intends to read. One per (book, user).
type Plan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Note      string    `gorm:"type:text" json:"note"`
	DateAdded time.Time `gorm:"index" json:"date_added"`
	BookID    uint      `gorm:"uniqueIndex:idx_plan_book_user" json:"book_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_plan_book_user;index" json:"user_id"`
	Book      Book      `gorm:"foreignKey:BookID" json:"book"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (Book) TableName() string {
	return "books"
}

func (Review) TableName() string {
	return "reviews"
}

func (Reading) TableName() string {
	return "readings"
}

func (Plan) TableName() string {
	return "plans"
}

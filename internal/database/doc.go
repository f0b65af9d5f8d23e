// Package database provides the data access layer for the reading log.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── books/           # Shared book records, create-or-get by catalog id
//	├── shelves/         # Reviews, current reading and plans of a user
//	└── users/           # User accounts
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	db, err := database.NewDatabase("./booklog.db")
//
//	booksRepo := books.NewRepository(db.DB)
//	shelvesRepo := shelves.NewRepository(db.DB)
//
//	book, created, err := booksRepo.CreateOrGet(fields)
//	reading, err := shelvesRepo.AddReading(userID, book.ID, note, nil)
//
// Lookups that find nothing return gorm.ErrRecordNotFound; callers check it with
// errors.Is.
package database

package config

const (
	// DefaultDatabasePath is the default path for the reading log database
	DefaultDatabasePath = "./booklog.db"

	DefaultGoogleBooksURL = "https://www.googleapis.com/books/v1"
	DefaultOpenLibraryURL = "https://openlibrary.org"
)

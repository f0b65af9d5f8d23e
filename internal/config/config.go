package config

import (
	"time"

	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeNone  AuthMode = "none"  // Single anonymous user (default)
	AuthModeLocal AuthMode = "local" // Registered users with sessions
)

type (
	Config struct {
		HTTP
		Global
		Database
		UI
		Catalog
		BookSearch
		LivePages
		Covers
		Tasks
		Auth
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	UI struct {
		TemplatesPath string
		StaticPath    string
	}
	Catalog struct {
		GoogleBooksAPIKey   string
		GoogleBooksURL      string
		Country             string
		Timeout             time.Duration
		Workers             int
		OpenLibraryURL      string
		OpenLibraryInterval time.Duration // Minimum gap between Open Library requests
	}
	BookSearch struct {
		Endpoint  string // Remote search backend; empty uses the in-process catalog
		Supersede string // last_resolved | latest_issued
		Failure   string // reset_loader | keep_loader
		Timeout   time.Duration
	}
	LivePages struct {
		IdleTimeout   time.Duration
		SweepSchedule string // Cron format
		MaxPages      int
	}
	Covers struct {
		Dir           string
		Timeout       time.Duration
		SweepSchedule string // Cron format, empty disables the nightly cover sweep
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Auth struct {
		Mode            AuthMode
		SessionSecret   string
		SessionLifetime time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS

		MaxLoginAttempts int           // Failed logins before the account is locked
		RateLimitWindow  time.Duration // Window for counting attempts per client
		LockoutDuration  time.Duration
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("templates_path", "./templates")
	v.SetDefault("static_path", "./static")

	// Catalog defaults
	v.SetDefault("google_books_api_key", "")
	v.SetDefault("google_books_url", DefaultGoogleBooksURL)
	v.SetDefault("google_books_country", "UK")
	v.SetDefault("catalog_timeout", "15s")
	v.SetDefault("catalog_workers", 8)
	v.SetDefault("open_library_url", DefaultOpenLibraryURL)
	v.SetDefault("open_library_interval", "1s")

	// Book search widget defaults
	v.SetDefault("booksearch_endpoint", "")
	v.SetDefault("booksearch_supersede", "last_resolved")
	v.SetDefault("booksearch_failure", "reset_loader")
	v.SetDefault("booksearch_timeout", "20s")

	// Live page defaults
	v.SetDefault("live_page_idle_timeout", "30m")
	v.SetDefault("live_page_sweep_schedule", "*/5 * * * *")
	v.SetDefault("live_page_max_pages", 1000)

	// Cover cache defaults
	v.SetDefault("covers_dir", "./covers")
	v.SetDefault("covers_timeout", "30s")
	v.SetDefault("covers_sweep_schedule", "0 3 * * *")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Auth defaults
	v.SetDefault("auth_mode", "none")
	v.SetDefault("auth_session_secret", "")
	v.SetDefault("auth_session_lifetime", "24h")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_secure_cookies", true)
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		UI: UI{
			TemplatesPath: v.GetString("TEMPLATES_PATH"),
			StaticPath:    v.GetString("STATIC_PATH"),
		},
		Catalog: Catalog{
			GoogleBooksAPIKey:   v.GetString("GOOGLE_BOOKS_API_KEY"),
			GoogleBooksURL:      v.GetString("GOOGLE_BOOKS_URL"),
			Country:             v.GetString("GOOGLE_BOOKS_COUNTRY"),
			Timeout:             v.GetDuration("CATALOG_TIMEOUT"),
			Workers:             v.GetInt("CATALOG_WORKERS"),
			OpenLibraryURL:      v.GetString("OPEN_LIBRARY_URL"),
			OpenLibraryInterval: v.GetDuration("OPEN_LIBRARY_INTERVAL"),
		},
		BookSearch: BookSearch{
			Endpoint:  v.GetString("BOOKSEARCH_ENDPOINT"),
			Supersede: v.GetString("BOOKSEARCH_SUPERSEDE"),
			Failure:   v.GetString("BOOKSEARCH_FAILURE"),
			Timeout:   v.GetDuration("BOOKSEARCH_TIMEOUT"),
		},
		LivePages: LivePages{
			IdleTimeout:   v.GetDuration("LIVE_PAGE_IDLE_TIMEOUT"),
			SweepSchedule: v.GetString("LIVE_PAGE_SWEEP_SCHEDULE"),
			MaxPages:      v.GetInt("LIVE_PAGE_MAX_PAGES"),
		},
		Covers: Covers{
			Dir:           v.GetString("COVERS_DIR"),
			Timeout:       v.GetDuration("COVERS_TIMEOUT"),
			SweepSchedule: v.GetString("COVERS_SWEEP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Auth: Auth{
			Mode:             AuthMode(v.GetString("AUTH_MODE")),
			SessionSecret:    v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
	}
}

// Package auth provides user accounts, sessions and request protection.
//
// Two modes are supported:
//   - "none": a single anonymous reader; every request runs as DefaultUserID
//   - "local": readers register and log in; shelves are per user
//
// Sessions are used in both modes. Besides the logged in user they carry the id of
// the visitor's live page, so the book search widget state survives between HTMX
// requests.
//
// # Configuration
//
//	AUTH_MODE=none|local
//	AUTH_SESSION_SECRET=<hex-32-bytes>  # Generated if empty, sessions then die on restart
//	AUTH_SESSION_LIFETIME=24h
//	AUTH_BCRYPT_COST=12
//	AUTH_SECURE_COOKIES=true
//
// # Usage
//
//	authService := auth.NewService(users.NewRepository(db), cfg.Auth)
//	sessions, _ := auth.NewSessionManager(sqlDB, cfg.Auth)
//	router.Use(sessions.SessionLoadSave())
//	router.Use(auth.NewMiddleware(authService, sessions, cfg.Auth).Handler())
//
// Handlers read the current reader with auth.GetUserID(c).
package auth

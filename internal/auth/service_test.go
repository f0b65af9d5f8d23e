package auth

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/booklog/internal/config"
	"github.com/mrlokans/booklog/internal/database/users"
	"github.com/mrlokans/booklog/internal/entities"
)

func testAuthConfig() config.Auth {
	return config.Auth{
		Mode:             config.AuthModeLocal,
		SessionLifetime:  time.Hour,
		BcryptCost:       bcrypt.MinCost,
		MaxLoginAttempts: 3,
		RateLimitWindow:  time.Minute,
		LockoutDuration:  10 * time.Minute,
	}
}

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	dbPath := "./test_auth_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.User{}))

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}
	return db, cleanup
}

func setupTestService(t *testing.T) (*Service, func()) {
	db, cleanup := setupTestDB(t)
	return NewService(users.NewRepository(db), testAuthConfig()), cleanup
}

func TestService_Register(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	hasUsers, err := service.HasUsers()
	require.NoError(t, err)
	assert.False(t, hasUsers)

	user, err := service.Register(" lexie ", "lexie@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "lexie", user.Username)
	assert.NotEqual(t, "correct horse", user.PasswordHash)
	assert.NoError(t, CheckPassword("correct horse", user.PasswordHash))

	hasUsers, err = service.HasUsers()
	require.NoError(t, err)
	assert.True(t, hasUsers)
}

func TestService_Register_Validation(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	_, err := service.Register("lexie", "lexie@example.com", "correct horse")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		email    string
		password string
		want     error
	}{
		{"missing username", "", "", "correct horse", ErrUsernameRequired},
		{"bad username", "a b", "", "correct horse", ErrUsernameInvalid},
		{"bad email", "reader", "not-an-email", "correct horse", ErrEmailInvalid},
		{"missing password", "reader", "", "", ErrPasswordRequired},
		{"short password", "reader", "", "short", ErrPasswordTooShort},
		{"taken username", "lexie", "", "correct horse", ErrUserExists},
		{"taken email", "other", "lexie@example.com", "correct horse", ErrUserExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Register(tt.username, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_Register_EmailOptional(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	_, err := service.Register("first", "", "correct horse")
	require.NoError(t, err)
	_, err = service.Register("second", "", "correct horse")
	assert.NoError(t, err)
}

func TestService_Authenticate(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	created, err := service.Register("lexie", "lexie@example.com", "correct horse")
	require.NoError(t, err)

	byName, err := service.Authenticate("lexie", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
	assert.NotNil(t, byName.LastLoginAt)

	byEmail, err := service.Authenticate("lexie@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = service.Authenticate("lexie", "wrong horse")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = service.Authenticate("nobody", "correct horse")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_Authenticate_Lockout(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	_, err := service.Register("lexie", "", "correct horse")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = service.Authenticate("lexie", "wrong horse")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	}

	_, err = service.Authenticate("lexie", "correct horse")
	assert.ErrorIs(t, err, ErrAccountLocked)

	now = now.Add(11 * time.Minute)
	user, err := service.Authenticate("lexie", "correct horse")
	require.NoError(t, err)
	assert.Zero(t, user.FailedLoginCount)
}

func TestService_GetUserByID(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	created, err := service.Register("lexie", "", "correct horse")
	require.NoError(t, err)

	user, err := service.GetUserByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "lexie", user.Username)

	_, err = service.GetUserByID(404)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, CheckPassword("correct horse", hash))
	assert.ErrorIs(t, CheckPassword("wrong horse", hash), ErrInvalidPassword)

	_, err = HashPassword("1234567", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	_, err = HashPassword(string(long), bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	secret, err := GenerateSessionSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 64)
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = rl.Allow("10.0.0.1")
	assert.True(t, ok)

	ok, retry := rl.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))

	ok, _ = rl.Allow("10.0.0.2")
	assert.True(t, ok, "clients have separate buckets")

	now = now.Add(31 * time.Second)
	ok, _ = rl.Allow("10.0.0.1")
	assert.True(t, ok, "bucket refills over the window")

	now = now.Add(time.Hour)
	assert.Equal(t, 2, rl.Sweep(30*time.Minute))
}

func TestSanitizeRedirectPath(t *testing.T) {
	assert.Equal(t, "/plans", sanitizeRedirectPath("/plans"))
	assert.Equal(t, HomePath, sanitizeRedirectPath(""))
	assert.Equal(t, HomePath, sanitizeRedirectPath("//evil.example"))
	assert.Equal(t, HomePath, sanitizeRedirectPath("https://evil.example"))
	assert.Equal(t, HomePath, sanitizeRedirectPath("/\\evil"))
}

package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/edusuite/usafiri/core"
	"github.com/edusuite/usafiri/core/user"
	"github.com/edusuite/usafiri/storage/database"
)

// NewTestConfig returns a Config suitable for tests; no files or env involved.
func NewTestConfig() *core.Config {
	return &core.Config{
		Debug:                     true,
		TestMode:                  true,
		Env:                       "TEST",
		AppName:                   "Usafiri",
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "Usafiri", Address: "noreply@test.test"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		EmailVerifTimeoutDelta:    24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        4 * time.Hour,
			JWTRefreshExpirationDelta: 7 * 24 * time.Hour,
		},
	}
}

// PrepareDB opens a fresh in-memory database with foreign keys enforced and
// the full schema migrated.
func PrepareDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_fk=1"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}

	// a single connection keeps every query on the same in-memory DB
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isVerified bool,
) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Name:       name,
		Email:      email,
		Role:       role,
		Status:     user.StatusActive,
		IsVerified: isVerified,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

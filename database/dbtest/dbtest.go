// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"startup-hub/config"
	"startup-hub/database"
	"startup-hub/models"
)

// New returns a migrated sqlite database living in t.TempDir().
func New(t testing.TB) *gorm.DB {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	}
	db, err := database.Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// User inserts a user with the given name and type.
func User(t testing.TB, db *gorm.DB, name string, typ models.UserType) models.User {
	t.Helper()
	u := models.User{Username: name, UserType: typ}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

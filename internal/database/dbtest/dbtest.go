// Package dbtest opens throwaway databases for package tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/morningai/morningai/internal/config"
	"github.com/morningai/morningai/internal/database"
)

// New opens a migrated SQLite database in a temp dir, closed when the test ends
func New(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{URL: filepath.Join(t.TempDir(), "test.sqlite")}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

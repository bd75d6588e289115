// Package testutil provides shared test helpers.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/cinema-festival/internal/database"
)

// TestDB creates a temporary SQLite database with all migrations applied.
// It is closed automatically when the test ends.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "festival-test.db")
	db, err := database.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db, database.SQLite); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

// TestLogger returns a logger that writes through t.Log at warn level and
// above.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

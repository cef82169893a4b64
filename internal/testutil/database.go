package testutil

import (
	"testing"

	"draftmark/internal/database"
	"draftmark/internal/review"
)

// NewTestDatabase creates an empty in-memory review database.
func NewTestDatabase(t *testing.T) review.Database {
	t.Helper()
	return database.NewMemoryDatabase()
}

// NewTestSQLiteDatabase creates a new in-memory SQLite database with schema applied.
// The database is automatically closed when the test completes.
func NewTestSQLiteDatabase(t *testing.T) review.Database {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// Backends returns a fresh instance of every embedded database backend,
// keyed by name, for running the same test against each.
func Backends(t *testing.T) map[string]review.Database {
	t.Helper()
	return map[string]review.Database{
		"memory": NewTestDatabase(t),
		"sqlite": NewTestSQLiteDatabase(t),
	}
}

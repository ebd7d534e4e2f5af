package testutil

import (
	"database/sql"
	"testing"

	"taskboard/internal/db"
)

// NewTestDB creates an in-memory SQLite database closed at test cleanup.
// Callers create the tables they need through the stores' EnsureTable.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

package history

import (
	"database/sql"
	"testing"
)

// openTestDB opens an in-memory SQLite database with all migrations applied.
// The database is closed when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

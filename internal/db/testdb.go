package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// NewTestDB opens a gallery database in the test's temp dir with the schema
// applied. It is file-backed so WAL and the other pragmas behave as they do
// in the server.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "gallery.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := EnsureSchema(database); err != nil {
		t.Fatalf("applying gallery schema: %v", err)
	}
	return database
}

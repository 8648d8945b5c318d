// Package testing provides shared test helpers for curio packages.
package testing

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/teranos/curio/db"
)

// CreatePrimaryTestDB creates an in-memory primary store with all
// migrations applied. Cleanup is registered via t.Cleanup().
func CreatePrimaryTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return createTestDB(t, db.SetPrimary)
}

// CreateSearchTestDB creates an in-memory search index with all migrations
// applied. Cleanup is registered via t.Cleanup().
func CreateSearchTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return createTestDB(t, db.SetSearch)
}

func createTestDB(t *testing.T, set db.MigrationSet) *sql.DB {
	t.Helper()

	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	// A pooled second connection would see a fresh empty in-memory
	// database, so pin the pool to a single connection.
	database.SetMaxOpenConns(1)
	if _, err := database.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}
	if err := db.Migrate(database, set, nil); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})

	return database
}

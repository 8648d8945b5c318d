package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPrimaryRunsMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "primary.db")

	database, err := OpenPrimary(dbPath, nil)
	require.NoError(t, err)
	defer database.Close()

	for _, table := range []string{"schema_migrations", "items", "ingest_jobs", "dead_letters"} {
		var count int
		err = database.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestOpenSearchRunsMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "search.db")

	database, err := OpenSearch(dbPath, nil)
	require.NoError(t, err)
	defer database.Close()

	var count int
	err = database.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='item_documents'",
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "primary.db")

	database, err := OpenPrimary(dbPath, nil)
	require.NoError(t, err)
	defer database.Close()

	// Re-running the same set applies nothing and fails nothing.
	require.NoError(t, Migrate(database, SetPrimary, nil))

	var applied int
	err = database.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied)
	require.NoError(t, err)
	assert.Equal(t, 4, applied)
}

func TestIsBusy(t *testing.T) {
	assert.False(t, IsBusy(nil))
	assert.False(t, IsBusy(assert.AnError))
	assert.True(t, IsBusy(errLike("database is locked")))
}

type errLike string

func (e errLike) Error() string { return string(e) }

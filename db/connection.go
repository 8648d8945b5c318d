// Package db opens the curio SQLite databases and applies their embedded
// migrations. The primary store and the search index live in separate
// database files on purpose: they are independent sinks with independent
// failure modes, and nothing may couple their transactions.
package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/sym"
)

// Open opens a SQLite database at the specified path with the settings all
// curio stores rely on. If logger is nil the open is silent.
func Open(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if logger != nil {
		logger.Debugw("Opening database", "path", path, "symbol", sym.DB)
	}
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	// WAL mode for concurrent reads during materializer writes.
	if _, err := database.Exec("PRAGMA journal_mode = WAL"); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "enable WAL mode")
	}

	if _, err := database.Exec("PRAGMA foreign_keys = ON"); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "enable foreign keys")
	}

	// Bounded wait instead of immediate SQLITE_BUSY under write contention.
	if _, err := database.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "set busy timeout")
	}

	if logger != nil {
		logger.Infow("Database opened",
			"path", path,
			"symbol", sym.DB,
			"wal_mode", true,
		)
	}

	return database, nil
}

// OpenPrimary opens the primary item store and applies its migrations.
func OpenPrimary(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	database, err := Open(path, logger)
	if err != nil {
		return nil, err
	}
	if err := Migrate(database, SetPrimary, logger); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "migrate primary store")
	}
	return database, nil
}

// OpenSearch opens the search index and applies its migrations.
func OpenSearch(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	database, err := Open(path, logger)
	if err != nil {
		return nil, err
	}
	if err := Migrate(database, SetSearch, logger); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "migrate search index")
	}
	return database, nil
}

package db

import (
	"strings"

	"github.com/teranos/curio/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed
// database, which happens during graceful shutdown when the connection is
// closed before all workers have drained.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is
// closed. The string-matching fallback covers raw driver errors that cannot
// be wrapped at the source.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// IsBusy checks for SQLITE_BUSY/SQLITE_LOCKED contention errors, which the
// materializers classify as transient and retry.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

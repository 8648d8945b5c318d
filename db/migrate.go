package db

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/sym"
)

//go:embed sqlite/migrations/primary/*.sql sqlite/migrations/search/*.sql
var migrations embed.FS

// MigrationSet selects which store's migrations to apply.
type MigrationSet string

const (
	SetPrimary MigrationSet = "primary"
	SetSearch  MigrationSet = "search"
)

// Migrate applies all pending migrations for the given set. Each file runs
// in its own transaction and is recorded in schema_migrations; migration
// 000 bootstraps that table.
func Migrate(database *sql.DB, set MigrationSet, logger *zap.SugaredLogger) error {
	dir := path.Join("sqlite/migrations", string(set))
	entries, err := migrations.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "read %s migrations", set)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, filename := range files {
		version := strings.Split(filename, "_")[0]

		var exists bool
		err := database.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version).Scan(&exists)
		if err != nil {
			// Table missing: only legitimate before migration 000 runs.
			if version != "000" {
				return errors.Newf("schema_migrations table missing, but migration is not 000: %s", filename)
			}
		} else if exists {
			if logger != nil {
				logger.Debugw("Skipping migration (already applied)", "migration", filename)
			}
			continue
		}

		sqlBytes, err := migrations.ReadFile(path.Join(dir, filename))
		if err != nil {
			return errors.Wrapf(err, "read %s", filename)
		}

		if logger != nil {
			logger.Infow("Applying migration", "set", set, "migration", filename)
		}

		tx, err := database.Begin()
		if err != nil {
			return errors.Wrapf(err, "begin tx for %s", filename)
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "execute %s", filename)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "record %s", filename)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit %s", filename)
		}
	}

	if logger != nil {
		logger.Infow("Migrations complete",
			"symbol", sym.DB,
			"set", set,
			"total_migrations", len(files),
		)
	}

	return nil
}

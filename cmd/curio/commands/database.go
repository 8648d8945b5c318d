package commands

import (
	"database/sql"

	"github.com/teranos/curio/config"
	"github.com/teranos/curio/db"
	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/logger"
)

// openStores opens both SQLite stores at their configured paths and applies
// pending migrations. The caller owns both handles.
func openStores(cfg *config.Config) (primary, search *sql.DB, err error) {
	primary, err = db.OpenPrimary(cfg.Database.PrimaryPath, logger.Logger)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open primary store at %s", cfg.Database.PrimaryPath)
	}

	search, err = db.OpenSearch(cfg.Database.SearchPath, logger.Logger)
	if err != nil {
		primary.Close()
		return nil, nil, errors.Wrapf(err, "failed to open search index at %s", cfg.Database.SearchPath)
	}

	return primary, search, nil
}

// loadConfig loads and validates the merged configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

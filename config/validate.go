package config

import "github.com/teranos/curio/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Database.PrimaryPath == "" {
		return errors.New("database.primary_path cannot be empty")
	}
	if c.Database.SearchPath == "" {
		return errors.New("database.search_path cannot be empty")
	}
	if c.Database.PrimaryPath == c.Database.SearchPath {
		return errors.New("database.primary_path and database.search_path must differ: the stores are independent")
	}

	// Server port: 0 is invalid (omit for default), negative is invalid
	if c.Server.Port != nil && *c.Server.Port == 0 {
		return errors.Newf("server.port cannot be 0 (omit for default port %d)", DefaultServerPort)
	}
	if c.Server.Port != nil && *c.Server.Port < 0 {
		return errors.Newf("server.port must be positive, got %d", *c.Server.Port)
	}

	// Pulse workers: 0 = no background workers, negative = invalid
	if c.Pulse.Workers < 0 {
		return errors.Newf("pulse.workers must be >= 0, got %d", c.Pulse.Workers)
	}
	if c.Pulse.PollIntervalSeconds < 0 {
		return errors.Newf("pulse.poll_interval_seconds must be >= 0, got %d", c.Pulse.PollIntervalSeconds)
	}
	if c.Pulse.RatePerSecond < 0 {
		return errors.Newf("pulse.rate_per_second must be >= 0, got %f", c.Pulse.RatePerSecond)
	}
	if c.Pulse.CleanupAfterHours < 0 {
		return errors.Newf("pulse.cleanup_after_hours must be >= 0, got %d", c.Pulse.CleanupAfterHours)
	}

	if c.Ingest.MaxBatchSize <= 0 {
		return errors.Newf("ingest.max_batch_size must be > 0, got %d", c.Ingest.MaxBatchSize)
	}
	if c.Ingest.RetryMaxAttempts <= 0 {
		return errors.Newf("ingest.retry_max_attempts must be > 0, got %d", c.Ingest.RetryMaxAttempts)
	}
	if c.Ingest.RetryInitialBackoffMS < 0 {
		return errors.Newf("ingest.retry_initial_backoff_ms must be >= 0, got %d", c.Ingest.RetryInitialBackoffMS)
	}
	if c.Ingest.RetryMaxBackoffMS < c.Ingest.RetryInitialBackoffMS {
		return errors.Newf("ingest.retry_max_backoff_ms must be >= retry_initial_backoff_ms, got %d < %d",
			c.Ingest.RetryMaxBackoffMS, c.Ingest.RetryInitialBackoffMS)
	}

	if len(c.Ingest.DefaultCurrency) != 3 {
		return errors.Newf("ingest.default_currency must be a 3-letter code, got %q", c.Ingest.DefaultCurrency)
	}

	return nil
}

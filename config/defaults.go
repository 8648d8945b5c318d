package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.primary_path", "curio.db")
	v.SetDefault("database.search_path", "curio-search.db")

	// Server defaults
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})

	// Pulse (async ingest pipeline) defaults
	v.SetDefault("pulse.workers", 2)
	v.SetDefault("pulse.poll_interval_seconds", 5)
	v.SetDefault("pulse.rate_per_second", 1.0) // Polite pacing of batch starts
	v.SetDefault("pulse.cleanup_after_hours", 72)

	// Ingest defaults
	v.SetDefault("ingest.default_currency", "EUR")
	v.SetDefault("ingest.max_batch_size", 500)
	v.SetDefault("ingest.retry_max_attempts", 5)
	v.SetDefault("ingest.retry_initial_backoff_ms", 50)
	v.SetDefault("ingest.retry_max_backoff_ms", 2000)
}

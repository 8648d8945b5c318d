// Package config holds the curio runtime configuration: TOML files merged
// with CURIO_-prefixed environment variables through viper.
package config

// Config represents the core curio configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Server   ServerConfig   `mapstructure:"server" toml:"server"`
	Pulse    PulseConfig    `mapstructure:"pulse" toml:"pulse"`
	Ingest   IngestConfig   `mapstructure:"ingest" toml:"ingest"`
}

// DatabaseConfig configures the two SQLite stores
type DatabaseConfig struct {
	PrimaryPath string `mapstructure:"primary_path" toml:"primary_path"` // Primary item store (source of truth)
	SearchPath  string `mapstructure:"search_path" toml:"search_path"`   // Search document index
}

// ServerConfig configures the curio read API server
type ServerConfig struct {
	Port           *int     `mapstructure:"port" toml:"port,omitempty"` // nil = default, 0 is invalid (omit for default)
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
}

// DefaultServerPort is used when server.port is omitted
const DefaultServerPort = 8750

// PulseConfig configures the async ingest job pipeline
type PulseConfig struct {
	Workers             int     `mapstructure:"workers" toml:"workers"`                             // Concurrent batch workers (default: 2)
	PollIntervalSeconds int     `mapstructure:"poll_interval_seconds" toml:"poll_interval_seconds"` // Queue poll cadence (default: 5)
	RatePerSecond       float64 `mapstructure:"rate_per_second" toml:"rate_per_second"`             // Job starts per second, 0 disables the gate
	CleanupAfterHours   int     `mapstructure:"cleanup_after_hours" toml:"cleanup_after_hours"`     // Completed/failed job retention (default: 72)
}

// IngestConfig configures normalization and materialization
type IngestConfig struct {
	DefaultCurrency       string `mapstructure:"default_currency" toml:"default_currency"`                 // Currency assumed when a listing has none
	MaxBatchSize          int    `mapstructure:"max_batch_size" toml:"max_batch_size"`                     // Listings accepted per batch (default: 500)
	RetryMaxAttempts      int    `mapstructure:"retry_max_attempts" toml:"retry_max_attempts"`             // Per-sink write attempts (default: 5)
	RetryInitialBackoffMS int    `mapstructure:"retry_initial_backoff_ms" toml:"retry_initial_backoff_ms"` // First backoff (default: 50)
	RetryMaxBackoffMS     int    `mapstructure:"retry_max_backoff_ms" toml:"retry_max_backoff_ms"`         // Backoff cap (default: 2000)
}

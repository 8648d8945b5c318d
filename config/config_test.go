package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()

	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "curio.db", cfg.Database.PrimaryPath)
	assert.Equal(t, "curio-search.db", cfg.Database.SearchPath)
	assert.Equal(t, 2, cfg.Pulse.Workers)
	assert.Equal(t, "EUR", cfg.Ingest.DefaultCurrency)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty primary path", func(c *Config) { c.Database.PrimaryPath = "" }},
		{"shared store path", func(c *Config) { c.Database.SearchPath = c.Database.PrimaryPath }},
		{"zero port", func(c *Config) { port := 0; c.Server.Port = &port }},
		{"negative port", func(c *Config) { port := -1; c.Server.Port = &port }},
		{"negative workers", func(c *Config) { c.Pulse.Workers = -1 }},
		{"negative rate", func(c *Config) { c.Pulse.RatePerSecond = -0.5 }},
		{"zero batch size", func(c *Config) { c.Ingest.MaxBatchSize = 0 }},
		{"backoff cap below initial", func(c *Config) {
			c.Ingest.RetryInitialBackoffMS = 500
			c.Ingest.RetryMaxBackoffMS = 100
		}},
		{"bad currency", func(c *Config) { c.Ingest.DefaultCurrency = "EURO" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curio.toml")

	content := `
[database]
primary_path = "/tmp/p.db"
search_path = "/tmp/s.db"

[pulse]
workers = 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/p.db", cfg.Database.PrimaryPath)
	assert.Equal(t, 4, cfg.Pulse.Workers)
	// Defaults still fill in the rest
	assert.Equal(t, 500, cfg.Ingest.MaxBatchSize)
}

func TestSaveToFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curio.toml")

	cfg := defaultConfig(t)
	cfg.Pulse.Workers = 7

	require.NoError(t, SaveToFile(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Pulse.Workers)
	assert.Equal(t, cfg.Database.PrimaryPath, loaded.Database.PrimaryPath)
}

func TestSaveToFileRotatesBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curio.toml")

	cfg := defaultConfig(t)
	require.NoError(t, SaveToFile(cfg, path))

	cfg.Pulse.Workers = 3
	require.NoError(t, SaveToFile(cfg, path))

	_, err := os.Stat(path + ".back1")
	assert.NoError(t, err, "previous config kept as .back1")
}

func TestSaveToFileRefusesInvalidConfig(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Ingest.MaxBatchSize = 0

	err := SaveToFile(cfg, filepath.Join(t.TempDir(), "curio.toml"))
	assert.Error(t, err)
}

func TestConfigWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curio.toml")

	cfg := defaultConfig(t)
	require.NoError(t, SaveToFile(cfg, path))

	watcher, err := NewConfigWatcher(path)
	require.NoError(t, err)
	defer watcher.Stop()

	var mu sync.Mutex
	var reloaded *Config
	watcher.OnReload(func(c *Config) error {
		mu.Lock()
		defer mu.Unlock()
		reloaded = c
		return nil
	})
	watcher.Start()

	cfg.Pulse.Workers = 9
	require.NoError(t, SaveToFile(cfg, path))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		got := reloaded
		mu.Unlock()
		if got != nil {
			assert.Equal(t, 9, got.Pulse.Workers)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("config reload callback never fired")
}

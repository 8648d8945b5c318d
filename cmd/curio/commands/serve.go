package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/teranos/curio/config"
	"github.com/teranos/curio/index"
	"github.com/teranos/curio/logger"
	"github.com/teranos/curio/materialize"
	"github.com/teranos/curio/pulse/async"
	"github.com/teranos/curio/server"
	"github.com/teranos/curio/store"
	"github.com/teranos/curio/sym"
)

// ServeCmd starts the curio API server with the ingest worker pool
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the curio API server",
	Long: `Start the read API server together with the async ingest pipeline.

The server exposes item lookup, search, batch ingest, and job inspection
over HTTP, plus a WebSocket feed of job progress. Workers process queued
batches in the background until interrupted (Ctrl+C).`,
	RunE: runServe,
}

var (
	servePort    int
	serveWorkers int
)

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	ServeCmd.Flags().IntVar(&serveWorkers, "workers", 0, "Number of ingest workers (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	primary, search, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer primary.Close()
	defer search.Close()

	pool, _, err := buildWorkerPool(context.Background(), cfg, primary, search)
	if err != nil {
		return err
	}

	srv := server.New(primary, search, cfg, pool, logger.Logger)

	port := config.DefaultServerPort
	if cfg.Server.Port != nil {
		port = *cfg.Server.Port
	}
	if servePort > 0 {
		port = servePort
	}

	// Reload on config file changes when a user config exists
	if configPath := config.UserConfigPath(); configPath != "" {
		if _, statErr := os.Stat(configPath); statErr == nil {
			watcher, werr := config.NewConfigWatcher(configPath)
			if werr != nil {
				logger.Warnw("Config watcher unavailable, continuing without auto-reload", "error", werr)
			} else {
				watcher.OnReload(func(newCfg *config.Config) error {
					logger.Infow("Configuration reloaded", "workers", newCfg.Pulse.Workers)
					return nil
				})
				watcher.Start()
				defer watcher.Stop()
			}
		}
	}

	// Graceful shutdown on interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Printf("\n%s Shutting down...\n", sym.Pulse)
		srv.Stop()
	}()

	fmt.Printf("%s curio server starting on port %d\n", sym.Item, port)
	return srv.Start(port)
}

// buildWorkerPool wires the materialization pipeline into a worker pool:
// both sinks behind the coordinator, the batch handler registered, retry
// policy and pacing from config.
func buildWorkerPool(ctx context.Context, cfg *config.Config, primary, search *sql.DB) (*async.WorkerPool, *async.HandlerRegistry, error) {
	items := store.NewItemStore(primary)
	documents := index.NewDocumentStore(search)
	deadLetters := store.NewDeadLetterStore(primary)

	policy := materialize.RetryPolicy{
		MaxAttempts:    cfg.Ingest.RetryMaxAttempts,
		InitialBackoff: time.Duration(cfg.Ingest.RetryInitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Ingest.RetryMaxBackoffMS) * time.Millisecond,
	}

	coordinator := materialize.NewCoordinator(
		[]materialize.Materializer{
			materialize.NewPrimarySink(items),
			materialize.NewSearchSink(documents),
		},
		deadLetters,
		policy,
		logger.Logger,
	)

	poolCfg := async.DefaultWorkerPoolConfig()
	if cfg.Pulse.Workers > 0 {
		poolCfg.Workers = cfg.Pulse.Workers
	}
	if serveWorkers > 0 {
		poolCfg.Workers = serveWorkers
	}
	if cfg.Pulse.PollIntervalSeconds > 0 {
		poolCfg.PollInterval = time.Duration(cfg.Pulse.PollIntervalSeconds) * time.Second
	}
	poolCfg.RatePerSecond = cfg.Pulse.RatePerSecond

	registry := async.NewHandlerRegistry()
	pool := async.NewWorkerPool(ctx, primary, poolCfg, registry, logger.Logger)
	registry.Register(async.NewBatchHandler(items, deadLetters, coordinator, pool.GetQueue(), logger.Logger))

	return pool, registry, nil
}

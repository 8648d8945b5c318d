package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/curio/pulse/async"
	"github.com/teranos/curio/sym"
)

// PulseCmd manages the async ingest pipeline
var PulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: sym.Pulse + " Manage the async ingest pipeline",
	Long: sym.Pulse + ` Pulse — the async batch processor.

The pulse workers drain the ingest job queue: each queued batch is
normalized, versioned, and materialized into both stores. Interrupted
batches resume from their last checkpoint.

Example:
  curio pulse start              # Run workers in foreground
  curio pulse start --workers 4  # Run with 4 concurrent workers
  curio pulse status             # Show queue depth and recent jobs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// PulseStartCmd runs the worker pool in the foreground
var PulseStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ingest workers",
	Long: `Run the worker pool in foreground mode until interrupted (Ctrl+C).
Shutdown is graceful: in-flight batches checkpoint their progress and
resume on the next start.`,
	RunE: runPulseStart,
}

// PulseStatusCmd prints queue statistics and recent jobs
var PulseStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth and recent jobs",
	RunE:  runPulseStatus,
}

var pulseWorkersFlag int

func init() {
	PulseStartCmd.Flags().IntVar(&pulseWorkersFlag, "workers", 0, "Number of concurrent workers (overrides config)")
	PulseCmd.AddCommand(PulseStartCmd)
	PulseCmd.AddCommand(PulseStatusCmd)
}

func runPulseStart(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if pulseWorkersFlag > 0 {
		cfg.Pulse.Workers = pulseWorkersFlag
	}

	pool, _, err := buildWorkerPool(ctx, cfg, primary, search)
	if err != nil {
		return err
	}

	pool.Start()

	fmt.Printf("%s Pulse workers started\n", sym.Pulse)
	fmt.Printf("  Workers: %d\n", pool.Workers())
	fmt.Printf("  Poll interval: %ds\n", cfg.Pulse.PollIntervalSeconds)
	fmt.Printf("  Rate limit: %.1f jobs/s\n", cfg.Pulse.RatePerSecond)
	fmt.Printf("\n%s Press Ctrl+C for graceful shutdown\n\n", sym.Pulse)

	// Periodically evict old completed and failed jobs
	if cfg.Pulse.CleanupAfterHours > 0 {
		retention := time.Duration(cfg.Pulse.CleanupAfterHours) * time.Hour
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if removed, cerr := pool.GetQueue().Cleanup(retention); cerr == nil && removed > 0 {
						fmt.Printf("%s Evicted %d finished jobs older than %v\n", sym.Pulse, removed, retention)
					}
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Printf("\n%s Initiating graceful shutdown...\n", sym.Pulse)
	pool.Stop()
	fmt.Printf("%s Pulse workers stopped\n", sym.Pulse)
	return nil
}

func runPulseStatus(cmd *cobra.Command, args []string) error {
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

	queue := async.NewQueue(primary)

	stats, err := queue.GetStats()
	if err != nil {
		return err
	}

	fmt.Printf("%s Pulse queue\n", sym.Pulse)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("Queued:    %d\n", stats.Queued)
	fmt.Printf("Running:   %d\n", stats.Running)
	fmt.Printf("Paused:    %d\n", stats.Paused)
	fmt.Printf("Completed: %d\n", stats.Completed)
	fmt.Printf("Failed:    %d\n", stats.Failed)
	fmt.Println()

	jobs, err := queue.ListActiveJobs(10)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		pterm.Info.Println("No active jobs")
		return nil
	}

	rows := pterm.TableData{{"Job", "Source", "Status", "Progress", "Retries", "Created"}}
	for _, job := range jobs {
		rows = append(rows, []string{
			shortJobID(job.ID),
			job.Source,
			string(job.Status),
			fmt.Sprintf("%d/%d", job.Progress.Current, job.Progress.Total),
			fmt.Sprintf("%d", job.RetryCount),
			job.CreatedAt.Local().Format("15:04:05"),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// shortJobID truncates a job id for table display
func shortJobID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/ingest"
	"github.com/teranos/curio/logger"
	"github.com/teranos/curio/pulse/async"
	"github.com/teranos/curio/store"
	"github.com/teranos/curio/sym"
)

// IngestCmd processes a batch of raw listings from a JSON file
var IngestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: sym.IX + " Ingest a batch of raw listings",
	Long: sym.IX + ` ingest — process a scraped batch from a JSON file.

The file holds either a bare array of raw listings or an object with
"source" and "listings" fields. Each listing is normalized, versioned,
and materialized into the primary store and the search index. Malformed
listings are dead-lettered and do not fail the batch.

Example:
  curio ingest listings.json
  curio ingest listings.json --source craigslist`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var ingestSourceFlag string

func init() {
	IngestCmd.Flags().StringVar(&ingestSourceFlag, "source", "", "Source override when the file has no source field")
}

// batchFile is the accepted file shape; a bare array decodes into Listings
type batchFile struct {
	Source   string              `json:"source"`
	Listings []ingest.RawListing `json:"listings"`
}

func readBatchFile(path, sourceOverride string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	var batch batchFile
	if err := json.Unmarshal(data, &batch); err != nil {
		// A bare array of listings is also accepted
		if arrErr := json.Unmarshal(data, &batch.Listings); arrErr != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", path)
		}
	}

	if sourceOverride != "" {
		batch.Source = sourceOverride
	}
	if batch.Source == "" && len(batch.Listings) > 0 {
		batch.Source = batch.Listings[0].Source
	}
	if batch.Source == "" {
		return nil, errors.New("no source: set a source field in the file or pass --source")
	}
	if len(batch.Listings) == 0 {
		return nil, errors.New("no listings in file")
	}
	return &batch, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	batch, err := readBatchFile(args[0], ingestSourceFlag)
	if err != nil {
		return err
	}
	if len(batch.Listings) > cfg.Ingest.MaxBatchSize {
		return errors.Newf("batch of %d listings exceeds limit of %d", len(batch.Listings), cfg.Ingest.MaxBatchSize)
	}

	primary, search, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer primary.Close()
	defer search.Close()

	ctx := context.Background()
	pool, registry, err := buildWorkerPool(ctx, cfg, primary, search)
	if err != nil {
		return err
	}
	queue := pool.GetQueue()
	deadLetters := store.NewDeadLetterStore(primary)

	pterm.Info.Printf("Ingesting %d listings from %s (source: %s)\n", len(batch.Listings), args[0], batch.Source)

	deadBefore, err := deadLetters.Count(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to count dead letters")
	}

	job, err := async.NewBatchJob(batch.Source, batch.Listings)
	if err != nil {
		return errors.Wrap(err, "failed to create batch job")
	}
	if err := queue.Enqueue(job); err != nil {
		return errors.Wrap(err, "failed to enqueue batch")
	}

	spinner, _ := pterm.DefaultSpinner.Start("Processing batch...")

	// Run the batch inline rather than through the worker pool: the CLI
	// wants the result before exiting.
	running, err := queue.Dequeue()
	if err != nil {
		spinner.Fail("Failed to dequeue batch")
		return errors.Wrap(err, "failed to dequeue batch")
	}

	executor := async.NewRegistryExecutor(registry)
	if execErr := executor.Execute(ctx, running); execErr != nil {
		queue.FailJob(running.ID, execErr)
		spinner.Fail(fmt.Sprintf("Batch failed: %v", execErr))
		return execErr
	}
	if err := queue.CompleteJob(running.ID); err != nil {
		logger.Warnw("Failed to mark job complete", "job_id", running.ID, "error", err)
	}

	spinner.Success(fmt.Sprintf("Processed %d listings", len(batch.Listings)))

	deadAfter, err := deadLetters.Count(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to count dead letters")
	}
	if rejected := deadAfter - deadBefore; rejected > 0 {
		pterm.Warning.Printf("%d listings were dead-lettered; inspect with the API or db stats\n", rejected)
	}

	items := store.NewItemStore(primary)
	total, byState, err := items.Stats(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read item stats")
	}
	pterm.Println()
	pterm.Info.Printf("Store now holds %d items (active: %d, updated: %d, removed: %d)\n",
		total, byState["active"], byState["updated"], byState["removed"])

	return nil
}

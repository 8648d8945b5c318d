package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/index"
	"github.com/teranos/curio/item"
	"github.com/teranos/curio/pulse/async"
	"github.com/teranos/curio/store"
	"github.com/teranos/curio/sym"
)

// DbCmd manages the curio databases
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage the curio databases",
	Long: sym.DB + ` db — primary store and search index operations.

Examples:
  curio db stats     # Show item, document, job, and dead-letter counts
  curio db migrate   # Apply pending migrations to both stores`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  "Display item counts by lifecycle state, search document totals, job queue depth, and dead letters",
	RunE:  runDbStats,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations to both stores",
	RunE:  runDbMigrate,
}

func init() {
	DbCmd.AddCommand(dbStatsCmd)
	DbCmd.AddCommand(dbMigrateCmd)
}

func runDbStats(cmd *cobra.Command, args []string) error {
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

	ctx := context.Background()

	total, byState, err := store.NewItemStore(primary).Stats(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to query item stats")
	}

	docCount, err := index.NewDocumentStore(search).Count(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to count documents")
	}

	deadCount, err := store.NewDeadLetterStore(primary).Count(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to count dead letters")
	}

	queueStats, err := async.NewQueue(primary).GetStats()
	if err != nil {
		return errors.Wrap(err, "failed to query job stats")
	}

	fmt.Printf("%s Database Statistics\n", sym.DB)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Primary store:  %s\n", cfg.Database.PrimaryPath)
	fmt.Printf("Search index:   %s\n", cfg.Database.SearchPath)
	fmt.Println()
	fmt.Printf("Items:          %d\n", total)
	fmt.Printf("  active:       %d\n", byState[item.StateActive])
	fmt.Printf("  updated:      %d\n", byState[item.StateUpdated])
	fmt.Printf("  removed:      %d\n", byState[item.StateRemoved])
	fmt.Printf("Documents:      %d\n", docCount)
	fmt.Printf("Dead letters:   %d\n", deadCount)
	fmt.Println()
	fmt.Printf("Jobs:           %d total\n", queueStats.Total)
	fmt.Printf("  queued:       %d\n", queueStats.Queued)
	fmt.Printf("  running:      %d\n", queueStats.Running)
	fmt.Printf("  paused:       %d\n", queueStats.Paused)
	fmt.Printf("  completed:    %d\n", queueStats.Completed)
	fmt.Printf("  failed:       %d\n", queueStats.Failed)

	if docCount != total {
		fmt.Printf("\n%s Index holds %d documents for %d items; stores converge as queued batches drain\n",
			sym.Skipped, docCount, total)
	}

	return nil
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// openStores migrates both databases as a side effect of opening
	primary, search, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer primary.Close()
	defer search.Close()

	fmt.Printf("%s Migrations applied\n", sym.DB)
	fmt.Printf("  Primary store: %s\n", cfg.Database.PrimaryPath)
	fmt.Printf("  Search index:  %s\n", cfg.Database.SearchPath)
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/teranos/curio/cmd/curio/commands"
	"github.com/teranos/curio/logger"
)

var rootCmd = &cobra.Command{
	Use:   "curio",
	Short: "curio - marketplace listing ingest and search",
	Long: `curio - normalize scraped marketplace listings into canonical items.

curio ingests raw listing payloads from scraping collaborators, versions
them, and materializes each accepted item into a primary store and a
search index. Filters run against the index or a live watch stream.

Available commands:
  serve   - Start the read API server with the ingest worker pool
  ingest  - Ingest a batch of raw listings from a JSON file
  pulse   - Inspect and control the async ingest pipeline
  item    - Look up canonical items
  search  - Query the search index
  watch   - Stream items matching filter criteria
  db      - Database statistics and migrations
  config  - Show or initialize configuration

Examples:
  curio serve                       # Start API server + workers
  curio ingest listings.json        # Process a scraped batch
  curio search lamp --max-price 50  # Search indexed items
  curio watch --filters lamps.yaml  # Watch for matching items`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.IngestCmd)
	rootCmd.AddCommand(commands.PulseCmd)
	rootCmd.AddCommand(commands.ItemCmd)
	rootCmd.AddCommand(commands.SearchCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

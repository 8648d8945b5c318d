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
	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/filter"
	"github.com/teranos/curio/index"
	"github.com/teranos/curio/item"
	"github.com/teranos/curio/sym"
)

// WatchCmd streams items matching filter criteria as they land in the index
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: sym.Watch + " Stream items matching filter criteria",
	Long: sym.Watch + ` watch — follow the search index for matching items.

Criteria come from a YAML file: mappings of all/any/not combinators over
keyword, price, location, category, and state predicates. Matching items
are printed once per accepted version, so a price change on a watched
item shows up again.

Example filter file:
  all:
    - keyword: bike
    - price: {max: 20000, currency: EUR}
    - not:
        state: [removed]

Example:
  curio watch --filters lamps.yaml
  curio watch --filters lamps.yaml --interval 10s`,
	RunE: runWatch,
}

var (
	watchFiltersFlag  string
	watchIntervalFlag time.Duration
)

func init() {
	WatchCmd.Flags().StringVar(&watchFiltersFlag, "filters", "", "YAML file with filter criteria (required)")
	WatchCmd.Flags().DurationVar(&watchIntervalFlag, "interval", 5*time.Second, "Poll interval")
	WatchCmd.MarkFlagRequired("filters")
}

func runWatch(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(watchFiltersFlag)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", watchFiltersFlag)
	}
	criteria, err := filter.ParseYAML(data)
	if err != nil {
		return err
	}

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

	documents := index.NewDocumentStore(search)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	pterm.Info.Printf("Watching for matches (poll every %v, Ctrl+C to stop)\n", watchIntervalFlag)

	// One line per accepted version: re-print when the version moves
	seen := make(map[item.ID]item.Version)
	ticker := time.NewTicker(watchIntervalFlag)
	defer ticker.Stop()

	if err := watchPass(ctx, documents, criteria, seen, true); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n%s Watch stopped\n", sym.Watch)
			return nil
		case <-ticker.C:
			if err := watchPass(ctx, documents, criteria, seen, false); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				pterm.Warning.Printf("Watch poll failed: %v\n", err)
			}
		}
	}
}

// watchPass queries the index once and prints documents whose version is
// new since the last pass. The first pass seeds the seen set silently
// unless initial is true.
func watchPass(ctx context.Context, documents *index.DocumentStore, criteria filter.Criteria, seen map[item.ID]item.Version, initial bool) error {
	docs, err := documents.Search(ctx, criteria, 500)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		prev, ok := seen[doc.ItemID]
		if ok && !doc.Version.NewerThan(prev) {
			continue
		}
		seen[doc.ItemID] = doc.Version

		marker := sym.Watch
		if ok {
			marker = sym.Applied // known item accepted a newer version
		}

		price := "-"
		if doc.Price != nil {
			price = formatPrice(doc.Price)
		}
		when := time.Unix(0, doc.Version.ObservedAt).Local().Format("15:04:05")
		fmt.Printf("%s [%s] %-40s %12s  %s  (%s)\n", marker, when, doc.Title, price, doc.State, doc.ItemID)
	}

	if initial {
		pterm.Printf("%d existing match(es)\n\n", len(docs))
	}
	return nil
}

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/curio/display"
	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/filter"
	"github.com/teranos/curio/index"
	"github.com/teranos/curio/item"
	"github.com/teranos/curio/sym"
)

// SearchCmd queries the search index
var SearchCmd = &cobra.Command{
	Use:   "search [terms...]",
	Short: sym.Search + " Query the search index",
	Long: sym.Search + ` search — query indexed item documents.

Positional terms become keyword predicates; flags add price, location,
category, and state constraints. All predicates must match.

Example:
  curio search lamp
  curio search lamp --max-price 5000 --currency EUR
  curio search --category furniture --state active,updated`,
	RunE: runSearch,
}

var (
	searchMinPrice int64
	searchMaxPrice int64
	searchCurrency string
	searchLocation string
	searchCategory string
	searchStates   string
	searchLimit    int
	searchJSONFlag bool
)

func init() {
	SearchCmd.Flags().Int64Var(&searchMinPrice, "min-price", -1, "Minimum price in minor units")
	SearchCmd.Flags().Int64Var(&searchMaxPrice, "max-price", -1, "Maximum price in minor units")
	SearchCmd.Flags().StringVar(&searchCurrency, "currency", "", "Require this price currency")
	SearchCmd.Flags().StringVar(&searchLocation, "location", "", "Match this location")
	SearchCmd.Flags().StringVar(&searchCategory, "category", "", "Match this category")
	SearchCmd.Flags().StringVar(&searchStates, "state", "", "Comma-separated lifecycle states (active,updated,removed)")
	SearchCmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum results")
	SearchCmd.Flags().BoolVarP(&searchJSONFlag, "json", "j", false, "Output as JSON")
}

// buildSearchCriteria assembles the conjunction from args and flags.
// No predicates means match-all.
func buildSearchCriteria(args []string) (filter.Criteria, error) {
	var children []filter.Criteria

	for _, term := range args {
		if term = strings.TrimSpace(term); term != "" {
			children = append(children, filter.Keyword{Term: term})
		}
	}

	if searchMinPrice >= 0 || searchMaxPrice >= 0 || searchCurrency != "" {
		pr := filter.PriceRange{Currency: searchCurrency}
		if searchMinPrice >= 0 {
			min := searchMinPrice
			pr.Min = &min
		}
		if searchMaxPrice >= 0 {
			max := searchMaxPrice
			pr.Max = &max
		}
		children = append(children, pr)
	}

	if searchLocation != "" {
		children = append(children, filter.LocationIs{Location: searchLocation})
	}
	if searchCategory != "" {
		children = append(children, filter.CategoryIs{Category: searchCategory})
	}

	if searchStates != "" {
		var in filter.StateIn
		for _, raw := range strings.Split(searchStates, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			if !item.IsValidState(raw) {
				return nil, errors.Newf("invalid state %q", raw)
			}
			in.States = append(in.States, item.State(raw))
		}
		children = append(children, in)
	}

	if len(children) == 0 {
		return nil, nil
	}
	return filter.And{Children: children}, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	criteria, err := buildSearchCriteria(args)
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

	docs, err := index.NewDocumentStore(search).Search(context.Background(), criteria, searchLimit)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(docs)
	}

	if len(docs) == 0 {
		pterm.Info.Println("No matching items")
		return nil
	}

	rows := pterm.TableData{{"Item", "Title", "Price", "Location", "State"}}
	for _, doc := range docs {
		price := "-"
		if doc.Price != nil {
			price = formatPrice(doc.Price)
		}
		rows = append(rows, []string{
			string(doc.ItemID),
			doc.Title,
			price,
			doc.Location,
			string(doc.State),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}
	fmt.Printf("\n%s %d result(s)\n", sym.Search, len(docs))
	return nil
}

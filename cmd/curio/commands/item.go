package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teranos/curio/display"
	"github.com/teranos/curio/item"
	"github.com/teranos/curio/store"
	"github.com/teranos/curio/sym"
)

// ItemCmd looks up canonical items in the primary store
var ItemCmd = &cobra.Command{
	Use:   "item",
	Short: sym.Item + " Look up canonical items",
	Long: sym.Item + ` item — inspect the primary store.

Items are addressed by their canonical id, or by source and external id.

Example:
  curio item get craigslist:post-9001
  curio item get --source craigslist --external-id post-9001`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// ItemGetCmd fetches one item by id
var ItemGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get an item by canonical id or source:external_id",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runItemGet,
}

var (
	itemSourceFlag     string
	itemExternalIDFlag string
	itemJSONFlag       bool
)

func init() {
	ItemGetCmd.Flags().StringVar(&itemSourceFlag, "source", "", "Listing source (with --external-id)")
	ItemGetCmd.Flags().StringVar(&itemExternalIDFlag, "external-id", "", "Source-scoped listing id (with --source)")
	ItemGetCmd.Flags().BoolVarP(&itemJSONFlag, "json", "j", false, "Output as JSON")
	ItemCmd.AddCommand(ItemGetCmd)
}

// resolveItemID accepts either a canonical id argument, a source:external_id
// argument, or the --source/--external-id flag pair.
func resolveItemID(args []string) (item.ID, error) {
	if itemSourceFlag != "" && itemExternalIDFlag != "" {
		return item.ComputeID(itemSourceFlag, itemExternalIDFlag), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("provide an item id or --source and --external-id")
	}
	arg := args[0]
	if source, externalID, ok := strings.Cut(arg, ":"); ok && source != "" && externalID != "" {
		return item.ComputeID(source, externalID), nil
	}
	return item.ID(arg), nil
}

func runItemGet(cmd *cobra.Command, args []string) error {
	id, err := resolveItemID(args)
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

	it, err := store.NewItemStore(primary).Get(context.Background(), id)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(it)
	}

	printItem(it)
	return nil
}

func printItem(it *item.Item) {
	fmt.Printf("%s %s\n", sym.Item, it.Title)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("ID:          %s\n", it.ID)
	fmt.Printf("Source:      %s (%s)\n", it.Source, it.ExternalID)
	fmt.Printf("State:       %s\n", it.State)
	if it.Price != nil {
		fmt.Printf("Price:       %s\n", formatPrice(it.Price))
	}
	if it.Location != "" {
		fmt.Printf("Location:    %s\n", it.Location)
	}
	if it.Category != "" {
		fmt.Printf("Category:    %s\n", it.Category)
	}
	if it.Description != "" {
		fmt.Printf("Description: %s\n", it.Description)
	}
	fmt.Printf("First seen:  %s\n", it.FirstSeenAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Last seen:   %s\n", it.LastSeenAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Version:     %s\n", it.Version)
}

// formatPrice renders minor units as a decimal amount with currency
func formatPrice(p *item.Price) string {
	return fmt.Sprintf("%d.%02d %s", p.Amount/100, p.Amount%100, p.Currency)
}

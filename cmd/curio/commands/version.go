package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teranos/curio/display"
	"github.com/teranos/curio/version"
)

var versionJSON bool

// VersionCmd prints build information
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	RunE:  runVersion,
}

func init() {
	VersionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output as JSON")
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Get()

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(info)
	}

	fmt.Println(info.String())
	fmt.Printf("  go:       %s\n", info.GoVersion)
	fmt.Printf("  platform: %s\n", info.Platform)
	return nil
}

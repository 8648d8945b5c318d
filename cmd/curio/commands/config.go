package commands

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/curio/config"
	"github.com/teranos/curio/errors"
)

// ConfigCmd inspects and initializes curio configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and initialize configuration",
	Long: `Configuration is merged from defaults, ~/.curio/curio.toml,
a project-level curio.toml, and CURIO_* environment variables.

Examples:
  curio config show   # Print the merged effective configuration
  curio config init   # Write a config file with current defaults`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged effective configuration as TOML",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file to ~/.curio/curio.toml",
	RunE:  runConfigInit,
}

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing config file")
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to render configuration")
	}

	if path := config.UserConfigPath(); path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			fmt.Printf("# user config: %s\n", path)
		}
	}
	fmt.Print(string(out))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.UserConfigPath()
	if path == "" {
		return errors.New("cannot determine home directory for config file")
	}

	if _, err := os.Stat(path); err == nil && !configInitForce {
		return errors.Newf("config file already exists at %s (use --force to overwrite)", path)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := config.SaveToFile(cfg, path); err != nil {
		return errors.Wrapf(err, "failed to write config to %s", path)
	}

	pterm.Info.Printf("Wrote configuration to %s\n", path)
	return nil
}

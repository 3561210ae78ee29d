package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/warden-dev/warden/internal/config"
	"github.com/warden-dev/warden/internal/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage warden configuration",
	Long: `Manage warden's configuration.

The configuration file is stored at ~/.config/warden/config.yaml
(or $XDG_CONFIG_HOME/warden/config.yaml if XDG_CONFIG_HOME is set);
WARDEN_CONFIG overrides the location entirely.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long: `Print the effective configuration as YAML.

If no config file exists, shows the default configuration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}
		term.Printf("%s", data)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		term.Println(config.ConfigPath())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default config file",
	Long: `Create the default configuration file if it doesn't exist.

If the file already exists, this command leaves it untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefaultConfig(); err != nil {
			if errors.Is(err, os.ErrExist) {
				term.Printf("Config already exists at %s\n", config.ConfigPath())
				return nil
			}
			return err
		}
		term.Printf("Wrote default config to %s\n", config.ConfigPath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

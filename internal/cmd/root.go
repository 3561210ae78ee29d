// Package cmd implements the CLI commands for warden.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/warden-dev/warden/internal/config"
	"github.com/warden-dev/warden/internal/term"
	"github.com/warden-dev/warden/internal/version"
)

var (
	flagAddr  string
	flagQuiet bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Guardrailed command execution daemon",
	Long: `Warden runs shell commands on behalf of an LLM-driven coding agent,
with a blocklist, directory allowlist, and human approval for risky
commands. The daemon tracks background processes and streams state to
connected dashboards over a websocket.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		term.SetQuiet(flagQuiet)
	},
}

// Execute runs the root command and returns any error.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", config.DefaultListen,
		"daemon address (host:port)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false,
		"suppress normal output")
}

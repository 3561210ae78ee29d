package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/warden-dev/warden/internal/executor"
	"github.com/warden-dev/warden/internal/server"
	"github.com/warden-dev/warden/internal/term"
)

var (
	flagRunCwd        string
	flagRunTimeout    int
	flagRunBackground bool
	flagRunEnv        []string
)

var runCmd = &cobra.Command{
	Use:   "run <command>...",
	Short: "Run a command through the daemon",
	Long: `Submit a command to the daemon and wait for its result.

The command is subject to the daemon's guardrails: it can be blocked
outright, or held until someone approves it. The exit code of this
subcommand mirrors the remote command's exit code.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := parseEnvFlags(flagRunEnv)
		if err != nil {
			return err
		}

		cwd := flagRunCwd
		if cwd == "" {
			cwd, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to determine working directory: %w", err)
			}
		}

		client := server.NewClient(flagAddr)
		result, err := client.Run(cmd.Context(), server.RunRequest{
			Command:    strings.Join(args, " "),
			Cwd:        cwd,
			TimeoutSec: flagRunTimeout,
			Env:        env,
			Background: flagRunBackground,
		})
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

func init() {
	runCmd.Flags().StringVarP(&flagRunCwd, "cwd", "C", "", "working directory (default: current directory)")
	runCmd.Flags().IntVarP(&flagRunTimeout, "timeout", "t", 0, "timeout in seconds (default: daemon config)")
	runCmd.Flags().BoolVarP(&flagRunBackground, "background", "b", false, "run as a tracked background process")
	runCmd.Flags().StringArrayVarP(&flagRunEnv, "env", "e", nil, "environment override (KEY=VALUE, repeatable)")
	rootCmd.AddCommand(runCmd)
}

func parseEnvFlags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid env override %q: expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}

// printResult writes a result to the terminal and converts non-success
// statuses into an exit code.
func printResult(result executor.Result) error {
	if result.Stdout != "" {
		term.Printf("%s", result.Stdout)
		if !strings.HasSuffix(result.Stdout, "\n") {
			term.Printf("\n")
		}
	}
	if result.Stderr != "" {
		fmt.Fprint(os.Stderr, result.Stderr)
		if !strings.HasSuffix(result.Stderr, "\n") {
			fmt.Fprintln(os.Stderr)
		}
	}

	switch result.Status {
	case executor.StatusCompleted:
		return nil
	case executor.StatusBlocked:
		term.Error("command blocked: %s", result.BlockedReason)
		return exitWithCode(126)
	case executor.StatusRejected:
		reason := result.BlockedReason
		if reason == "" {
			reason = "approval was denied"
		}
		term.Error("command rejected: %s", reason)
		return exitWithCode(125)
	case executor.StatusTimeout:
		return exitWithCode(124)
	default:
		if result.ExitCode != nil && *result.ExitCode != 0 {
			return exitWithCode(*result.ExitCode)
		}
		return exitWithCode(1)
	}
}

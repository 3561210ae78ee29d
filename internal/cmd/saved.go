package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warden-dev/warden/internal/server"
	"github.com/warden-dev/warden/internal/store"
	"github.com/warden-dev/warden/internal/term"
)

var (
	flagSavedName        string
	flagSavedCwd         string
	flagSavedDescription string
)

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "Manage saved command shortcuts",
}

var savedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved commands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := server.NewClient(flagAddr)
		saved, err := client.ListSaved(cmd.Context())
		if err != nil {
			return err
		}
		if len(saved) == 0 {
			term.Println("No saved commands.")
			return nil
		}

		w := tabwriter.NewWriter(term.Stdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCOMMAND\tDIRECTORY\tDESCRIPTION")
		for _, sc := range saved {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", sc.ID, sc.Name, sc.Command, sc.Cwd, sc.Description)
		}
		return w.Flush()
	},
}

var savedAddCmd = &cobra.Command{
	Use:   "add <command>...",
	Short: "Save a command shortcut",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagSavedName == "" {
			return fmt.Errorf("--name is required")
		}
		client := server.NewClient(flagAddr)
		saved, err := client.SaveCommand(cmd.Context(), store.SavedCommand{
			Name:        flagSavedName,
			Command:     strings.Join(args, " "),
			Cwd:         flagSavedCwd,
			Description: flagSavedDescription,
		})
		if err != nil {
			return err
		}
		term.Printf("Saved %q as %s\n", saved.Name, saved.ID)
		return nil
	},
}

var savedDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved command",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := server.NewClient(flagAddr)
		if err := client.DeleteSaved(cmd.Context(), args[0]); err != nil {
			return err
		}
		term.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	savedAddCmd.Flags().StringVar(&flagSavedName, "name", "", "shortcut name (required)")
	savedAddCmd.Flags().StringVar(&flagSavedCwd, "cwd", "", "working directory for the shortcut")
	savedAddCmd.Flags().StringVar(&flagSavedDescription, "description", "", "what the shortcut does")
	savedCmd.AddCommand(savedListCmd)
	savedCmd.AddCommand(savedAddCmd)
	savedCmd.AddCommand(savedDeleteCmd)
	rootCmd.AddCommand(savedCmd)
}

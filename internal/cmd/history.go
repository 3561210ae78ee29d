package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warden-dev/warden/internal/server"
	"github.com/warden-dev/warden/internal/term"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent command results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := server.NewClient(flagAddr)
		records, err := client.History(cmd.Context(), flagHistoryLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			term.Println("No command history.")
			return nil
		}

		w := tabwriter.NewWriter(term.Stdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tSTATUS\tEXIT\tDIRECTORY\tCOMMAND")
		for _, rec := range records {
			exit := "-"
			if rec.ExitCode != nil {
				exit = fmt.Sprintf("%d", *rec.ExitCode)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Status, exit, rec.Cwd, rec.Command)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 50, "maximum results to show")
	rootCmd.AddCommand(historyCmd)
}

package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/warden-dev/warden/internal/server"
	"github.com/warden-dev/warden/internal/term"
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "List commands waiting for approval",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := server.NewClient(flagAddr)
		pending, err := client.Approvals(cmd.Context())
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			term.Println("No pending approvals.")
			return nil
		}

		w := tabwriter.NewWriter(term.Stdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCOMMAND\tDIRECTORY\tREASON\tAGE")
		for _, p := range pending {
			age := time.Since(p.RequestedAt).Round(time.Second)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Command, p.Cwd, p.Reason, age)
		}
		return w.Flush()
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <approval-id>",
	Short: "Approve a pending command",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := server.NewClient(flagAddr)
		if err := client.Approve(cmd.Context(), args[0]); err != nil {
			return err
		}
		term.Printf("Approved %s\n", args[0])
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <approval-id>",
	Short: "Reject a pending command",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := server.NewClient(flagAddr)
		if err := client.Reject(cmd.Context(), args[0]); err != nil {
			return err
		}
		term.Printf("Rejected %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(approvalsCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
}

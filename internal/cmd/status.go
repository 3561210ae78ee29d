package cmd

import (
	"github.com/spf13/cobra"

	"github.com/warden-dev/warden/internal/server"
	"github.com/warden-dev/warden/internal/term"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := server.NewClient(flagAddr)
		status, err := client.Status(cmd.Context())
		if err != nil {
			return err
		}
		term.Printf("Version:           %s\n", status.Version)
		term.Printf("Started:           %s\n", status.StartedAt)
		term.Printf("Background procs:  %d\n", status.Services)
		term.Printf("Pending approvals: %d\n", status.PendingApprovals)
		term.Printf("Observers:         %d\n", status.Observers)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

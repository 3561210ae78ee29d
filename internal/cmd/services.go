package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/warden-dev/warden/internal/server"
	"github.com/warden-dev/warden/internal/term"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List tracked background processes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := server.NewClient(flagAddr)
		services, err := client.Services(cmd.Context())
		if err != nil {
			return err
		}
		if len(services) == 0 {
			term.Println("No background processes.")
			return nil
		}

		w := tabwriter.NewWriter(term.Stdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPID\tSTATE\tMEM(MB)\tUPTIME\tCOMMAND")
		for _, svc := range services {
			state := "running"
			if !svc.Running {
				state = "exited"
			}
			uptime := time.Since(svc.StartedAt).Round(time.Second)
			fmt.Fprintf(w, "%s\t%d\t%s\t%.1f\t%s\t%s\n",
				svc.ID, svc.PID, state, svc.MemoryMB, uptime, svc.Command)
		}
		return w.Flush()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <service-id>",
	Short: "Stop a tracked background process",
	Long: `Stop a tracked background process by id (e.g. proc_1).

The whole process group receives SIGTERM, then SIGKILL if it does not
exit within the grace period.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := server.NewClient(flagAddr)
		if err := client.StopService(cmd.Context(), args[0]); err != nil {
			return err
		}
		term.Printf("Stopped %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(stopCmd)
}

package commands

import (
	"fmt"
	"time"

	"orderpulse/internal/admin"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running instance",
	Long: `Query the admin endpoint of a running "orderpulse serve" and render the
lifecycle jobs, their last runs and the next trigger times.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		token, _ := cmd.Flags().GetString("token")

		st, err := admin.NewClient(addr, token).Status(cmd.Context())
		if err != nil {
			return err
		}

		pterm.DefaultHeader.WithFullWidth().Println("orderpulse status")
		pterm.Info.Printfln("Running: %t  Tasks: %d", st.Lifecycle.IsRunning, st.Lifecycle.TaskCount)
		pterm.Info.Printfln("Next: %s", st.Lifecycle.NextRunDescription)
		if st.Lifecycle.SystemActorID != "" {
			pterm.Info.Printfln("System actor: %s", st.Lifecycle.SystemActorID)
		} else {
			pterm.Warning.Println("No system actor: automatic notes are skipped")
		}
		if st.PendingDeliveries != nil {
			pterm.Info.Printfln("Pending deliveries: %d", *st.PendingDeliveries)
		}

		data := pterm.TableData{{"Job", "Running", "Runs", "Next run", "Last finished", "Last error"}}
		for _, j := range st.Lifecycle.Jobs {
			lastErr := j.LastError
			if j.LastSkipped {
				lastErr = "(skipped)"
			}
			data = append(data, []string{
				j.Name,
				fmt.Sprint(j.Running),
				fmt.Sprint(j.Runs),
				fmtTime(j.NextRun),
				fmtTime(j.LastFinishedAt),
				lastErr,
			})
		}
		pterm.Println()
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	addAdminFlags(StatusCmd)
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

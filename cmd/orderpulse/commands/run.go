package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"orderpulse/internal/admin"
	"orderpulse/internal/app"
	"orderpulse/internal/lifecycle"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var RunCmd = &cobra.Command{
	Use:       "run daily|hourly",
	Short:     "Run one lifecycle job now",
	ValidArgs: []string{"daily", "hourly"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Long: `Run a lifecycle job once against the configured store and print its report.

With --remote the job runs inside a serving instance through its admin
endpoint, sharing that instance's re-entrancy guard.

Examples:
  orderpulse run daily
  orderpulse run hourly --remote --addr 127.0.0.1:8089`,
	RunE: func(cmd *cobra.Command, args []string) error {
		job := args[0]
		remote, _ := cmd.Flags().GetBool("remote")
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if remote {
			addr, _ := cmd.Flags().GetString("addr")
			token, _ := cmd.Flags().GetString("token")
			out, err := admin.NewClient(addr, token).Run(ctx, job)
			printReport(out.Report)
			return err
		}

		a, err := app.New(ConfigPath)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		lc := a.Lifecycle()
		if err := lc.ResolveActor(ctx); err != nil {
			return err
		}
		run := lc.RunDailyStatusCheck
		if job == "hourly" {
			run = lc.SendHourlyReminders
		}
		rep, err := run(ctx)
		printReport(rep)
		return err
	},
}

func init() {
	RunCmd.Flags().Bool("remote", false, "trigger the job on a running instance")
	addAdminFlags(RunCmd)
}

func addAdminFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", admin.DefaultAddr, "admin endpoint address")
	cmd.Flags().String("token", os.Getenv("ORDERPULSE_ADMIN_TOKEN"), "admin bearer token (default $ORDERPULSE_ADMIN_TOKEN)")
}

func printReport(rep lifecycle.Report) {
	if rep.Job == "" {
		return
	}
	if rep.Skipped {
		pterm.Warning.Printfln("%s skipped: %s", rep.Job, rep.SkipReason)
		return
	}
	data := pterm.TableData{{"Check", "Matched", "Succeeded", "Failed", "Sent", "Deduped"}}
	for _, c := range rep.Checks {
		name := c.Name
		if c.Aborted {
			name += " (aborted)"
		}
		data = append(data, []string{
			name,
			fmt.Sprint(c.Matched),
			fmt.Sprint(c.Succeeded),
			fmt.Sprint(c.Failed),
			fmt.Sprint(c.Sent),
			fmt.Sprint(c.Deduped),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	pterm.Info.Printfln("%s took %s; notifications sent %d, failed %d",
		rep.Job, rep.Duration(), rep.NotificationsSent, rep.NotificationsFailed)
	for _, c := range rep.Checks {
		for _, e := range c.Errors {
			pterm.Error.Printfln("%s: %s", c.Name, e)
		}
	}
}


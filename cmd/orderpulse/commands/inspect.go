package commands

import (
	"fmt"
	"strings"
	"time"

	"orderpulse/internal/app"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var InspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect orders and notifications in the store",
	Long: `Read-only views over the configured store.

Examples:
  orderpulse inspect order 6f1c...
  orderpulse inspect deliveries --since 24h`,
}

var inspectOrderCmd = &cobra.Command{
	Use:   "order <id>",
	Short: "Show an order and its audit notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(ConfigPath)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		o, err := a.Store().GetOrder(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		pterm.DefaultHeader.WithFullWidth().Printfln("Order %s", o.Number)
		pterm.Info.Printfln("Status: %s  Customer: %s  Archived: %t", o.Status, o.CustomerName, o.IsArchived)
		pterm.Info.Printfln("Scheduled: %s  Started: %s", fmtTimePtr(o.ScheduledDate), fmtTimePtr(o.StartTime))
		pterm.Info.Printfln("Assignments: %d", len(o.Assignments))

		notes, err := a.Store().ListOrderNotes(cmd.Context(), o.ID)
		if err != nil {
			return err
		}
		if len(notes) == 0 {
			pterm.Warning.Println("No notes")
			return nil
		}
		data := pterm.TableData{{"Created", "Category", "Internal", "Triggers", "Content"}}
		for _, n := range notes {
			data = append(data, []string{
				fmtTime(n.CreatedAt),
				string(n.Category),
				fmt.Sprint(n.IsInternal),
				string(n.TriggersStatus),
				n.Content,
			})
		}
		pterm.Println()
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var inspectDeliveriesCmd = &cobra.Command{
	Use:   "deliveries",
	Short: "List notification deliveries created recently",
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetDuration("since")
		a, err := app.New(ConfigPath)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		ds, err := a.Store().ListDeliveries(cmd.Context(), time.Now().Add(-since))
		if err != nil {
			return err
		}
		pending, err := a.Store().CountPendingDeliveries(cmd.Context())
		if err != nil {
			return err
		}
		pterm.Info.Printfln("%d deliveries in the last %s, %d pending overall", len(ds), since, pending)
		if len(ds) == 0 {
			return nil
		}
		data := pterm.TableData{{"Created", "Type", "Order", "User", "Channels", "Status"}}
		for _, d := range ds {
			channels := make([]string, 0, len(d.Recipient.Channels))
			for _, c := range d.Recipient.Channels {
				channels = append(channels, string(c))
			}
			data = append(data, []string{
				fmtTime(d.Recipient.CreatedAt),
				fmt.Sprint(d.Notification.Payload["reminderType"]),
				fmt.Sprint(d.Notification.Payload["orderNumber"]),
				d.Recipient.UserID,
				strings.Join(channels, ","),
				string(d.Recipient.Status),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	inspectDeliveriesCmd.Flags().Duration("since", 24*time.Hour, "how far back to list")
	InspectCmd.AddCommand(inspectOrderCmd)
	InspectCmd.AddCommand(inspectDeliveriesCmd)
}

func fmtTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return fmtTime(*t)
}

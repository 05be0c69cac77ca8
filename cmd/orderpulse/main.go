package main

import (
	"fmt"
	"os"

	"orderpulse/cmd/orderpulse/commands"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "orderpulse",
	Short: "Order lifecycle scheduler",
	Long: `orderpulse advances orders through their lifecycle on a schedule.

Daily it auto-starts due orders, expires stale ones and sends tomorrow,
upcoming and overdue reminders; hourly it sends upcoming-start reminders.

Available commands:
  serve    - Run the scheduler until interrupted
  run      - Run one lifecycle job now and print its report
  status   - Show the status of a running instance
  migrate  - Apply the database schema (optionally seed data)
  inspect  - Show an order's notes or recent deliveries

Examples:
  orderpulse serve -c config.yaml
  orderpulse run daily
  orderpulse status --addr 127.0.0.1:8089`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&commands.ConfigPath, "config", "c", "./config.yaml", "path to config (json or yaml)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.MigrateCmd)
	rootCmd.AddCommand(commands.InspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

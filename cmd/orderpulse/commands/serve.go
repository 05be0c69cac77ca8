package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orderpulse/internal/app"
	"orderpulse/pkg/logx"

	"github.com/spf13/cobra"
)

// ConfigPath is bound to the root --config flag.
var ConfigPath string

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lifecycle scheduler until interrupted",
	Long: `Start the task engine, install the daily and hourly lifecycle triggers
and serve the optional admin endpoint. Config changes are applied live.
SIGINT/SIGTERM trigger a graceful shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(ConfigPath)
		if err != nil {
			return err
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := a.Start(ctx); err != nil {
			_ = a.Stop(context.Background(), app.StopFatalError)
			return err
		}

		reason := app.StopUnknown
		select {
		case sig := <-sigCh:
			reason = app.StopSIGINT
			if sig == syscall.SIGTERM {
				reason = app.StopSIGTERM
			}
		case <-a.Done():
			reason = app.StopFatalError
			a.Logger().Error("app stopped on fatal error", logx.Err(a.Err()))
		}

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer stopCancel()
		if err := a.Stop(stopCtx, reason); err != nil {
			return err
		}
		if reason == app.StopFatalError {
			return a.Err()
		}
		return nil
	},
}

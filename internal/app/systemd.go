package app

import (
	"context"
	"time"

	"orderpulse/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

const (
	sdReady    = daemon.SdNotifyReady
	sdStopping = daemon.SdNotifyStopping
	sdWatchdog = daemon.SdNotifyWatchdog
)

// notifySystemd sends state to the service manager. Outside systemd
// (NOTIFY_SOCKET unset) it does nothing.
func notifySystemd(log logx.Logger, state string) bool {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return false
	}
	return sent
}

// startSystemd reports readiness and, when WatchdogSec is set on the unit,
// pings the watchdog at half its interval while the app runs.
func (a *App) startSystemd() {
	if !notifySystemd(a.log, sdReady) {
		return
	}
	a.log.Debug("systemd notified ready")

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				notifySystemd(a.log, sdWatchdog)
			}
		}
	})
}

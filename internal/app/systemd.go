package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "tickbot/pkg/logx"
)

// sdNotify sends state to the service manager. Outside systemd
// (NOTIFY_SOCKET unset) it is a no-op.
func (a *App) sdNotify(state string) bool {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		a.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
		return false
	}
	return sent
}

// startSystemd reports readiness and, when the unit sets WatchdogSec,
// pings the watchdog at half the interval with the runner progress as status.
func (a *App) startSystemd() {
	if a.sdNotify(daemon.SdNotifyReady) {
		a.log.Debug("systemd notified ready")
	}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		a.log.Warn("systemd watchdog config invalid", logx.Err(err))
		return
	}
	if interval <= 0 {
		return
	}
	a.log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				st := a.runner.Stats()
				a.sdNotify(daemon.SdNotifyWatchdog)
				a.sdNotify(fmt.Sprintf("STATUS=tick %d, %d tasks ended", st.Ticks, st.Ended))
			}
		}
	})
}

func (a *App) stopSystemd() { a.sdNotify(daemon.SdNotifyStopping) }

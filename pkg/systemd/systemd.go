// Package systemd reports service state to systemd (Type=notify units).
package systemd

import (
	"context"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "jobwrk/pkg/logx"
)

// Notifier sends sd_notify messages. Outside systemd ($NOTIFY_SOCKET unset)
// every call is a no-op.
type Notifier struct {
	log     logx.Logger
	enabled bool
}

func NewNotifier(log logx.Logger) *Notifier {
	return &Notifier{log: log, enabled: os.Getenv("NOTIFY_SOCKET") != ""}
}

func (n *Notifier) Enabled() bool { return n != nil && n.enabled }

func (n *Notifier) Ready()     { n.send(daemon.SdNotifyReady) }
func (n *Notifier) Reloading() { n.send(daemon.SdNotifyReloading) }
func (n *Notifier) Stopping()  { n.send(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) { n.send("STATUS=" + msg) }

func (n *Notifier) send(state string) {
	if !n.Enabled() {
		return
	}
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if !sent {
		n.log.Debug("sd_notify not delivered", logx.String("state", state))
	}
}

// WatchdogInterval returns how often to ping the watchdog: half of
// WatchdogSec, or 0 when the unit has no watchdog.
func (n *Notifier) WatchdogInterval() time.Duration {
	if !n.Enabled() {
		return 0
	}
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.log.Warn("watchdog config invalid", logx.Err(err))
		return 0
	}
	return d / 2
}

// RunWatchdog pings the watchdog every interval until ctx is done.
func (n *Notifier) RunWatchdog(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	n.log.Debug("watchdog started", logx.Duration("every", every))
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

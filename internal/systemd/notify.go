// Package systemd reports service state to the service manager over the
// sd_notify socket. Every call is a no-op when NOTIFY_SOCKET is unset.
package systemd

import (
	"fmt"
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/usbdisplay/internal/events"
	"github.com/smazurov/usbdisplay/internal/logging"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	unsubs []func()
	logger *slog.Logger
}

// NewNotifier returns a notifier.
func NewNotifier() *Notifier {
	return &Notifier{logger: logging.GetLogger("systemd")}
}

// Ready reports READY=1 with an initial status line.
func (n *Notifier) Ready(status string) {
	n.send(daemon.SdNotifyReady + "\nSTATUS=" + status)
}

// Status updates the STATUS= line shown by systemctl status.
func (n *Notifier) Status(status string) {
	n.send("STATUS=" + status)
}

// Stopping reports STOPPING=1 and detaches from the event bus.
func (n *Notifier) Stopping() {
	for _, unsub := range n.unsubs {
		unsub()
	}
	n.unsubs = nil
	n.send(daemon.SdNotifyStopping)
}

// Follow mirrors session starts and stops from bus into STATUS=.
func (n *Notifier) Follow(bus *events.Bus) {
	n.unsubs = append(n.unsubs,
		bus.Subscribe(func(e events.SessionStartedEvent) {
			n.Status(fmt.Sprintf("Streaming %s at %dx%d@%d", e.Device, e.Width, e.Height, e.RefreshHz))
		}),
		bus.Subscribe(func(e events.SessionStoppedEvent) {
			n.Status(fmt.Sprintf("Waiting for adapter (last session %s, %s)", e.Device, e.Reason))
		}),
	)
}

func (n *Notifier) send(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "error", err)
		return
	}
	if sent {
		n.logger.Debug("Notified service manager", "state", state)
	}
}

// Package notify raises desktop notifications for new messages via the
// freedesktop notify-send tool. Notification is a UI-side concern: the
// event consumer decides what to announce, never the listener.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"kbchatbox/internal/domain"
)

const sendTimeout = 3 * time.Second

// Notifier shells out to notify-send. Failures are logged, never surfaced:
// a missing notification daemon must not degrade the chat itself.
type Notifier struct {
	bin     string
	icon    string
	enabled bool
	logger  *slog.Logger
}

// New creates a Notifier. With enabled false, Notify is a no-op.
func New(bin, icon string, enabled bool, logger *slog.Logger) *Notifier {
	if bin == "" {
		bin = "notify-send"
	}
	if icon == "" {
		icon = "mail-read"
	}
	return &Notifier{bin: bin, icon: icon, enabled: enabled, logger: logger}
}

// Notify announces a new message. The subprocess runs on its own goroutine
// with a short deadline: the caller is the UI update loop, which must never
// wait on subprocess I/O, wedged notification daemon included.
func (n *Notifier) Notify(ctx context.Context, msg domain.ChatMessage) {
	if !n.enabled {
		return
	}

	summary := fmt.Sprintf("Keybase: new message from %s", msg.Sender)
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, n.bin, summary, "-i", n.icon)
		if err := cmd.Run(); err != nil {
			n.logger.Debug("desktop notification failed", "error", err)
		}
	}()
}

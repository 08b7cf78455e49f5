// Package notify is the fire-and-forget notification side-channel. The core
// never blocks on delivery; callers use the returned error only to set
// sent-flags such as payment_alert.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier sends a notification to a recipient. Implementations must not
// retry internally; at-most-once flags are managed by the caller.
type Notifier interface {
	Send(ctx context.Context, subject, body, recipient string) error
	Close() error
}

// logNotifier writes notifications to the application log. It is the default
// channel when no broker is configured, and the fallback when the broker is
// unreachable at startup.
type logNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) Notifier {
	return &logNotifier{
		logger: logger.With().Str("component", "log-notifier").Logger(),
	}
}

// Send logs the notification instead of delivering it.
func (n *logNotifier) Send(ctx context.Context, subject, body, recipient string) error {
	n.logger.Info().
		Str("subject", subject).
		Str("recipient", recipient).
		Msg("notification dispatched")
	return nil
}

// Close is a no-op for the log notifier.
func (n *logNotifier) Close() error {
	return nil
}

// Package notify hands outgoing e-mail notifications to a delivery queue.
package notify

import (
	"context"
	"log/slog"
)

// Message is a single notification for one recipient.
type Message struct {
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Notifier delivers messages. Implementations may fail transiently.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the log instead of a queue.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier for deployments without a broker.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify.LogNotifier")}
}

// Send implements Notifier.
func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "notification queued", "recipient", msg.Recipient, "subject", msg.Subject)
	return nil
}

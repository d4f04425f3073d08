package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/room-booking/internal/events"
	"github.com/example/room-booking/internal/notify"
	"github.com/example/room-booking/internal/security"
)

// Sinks are the post-commit side channels of the services. Any field may be nil.
type Sinks struct {
	Audit    AuditRepository
	Events   events.Publisher
	Notifier notify.Notifier
}

// auditRecord is the service-side view of an audit entry.
type auditRecord struct {
	actor       *string
	action      security.Action
	description string
	objectType  string
	objectID    string
	client      ClientInfo
	data        map[string]any
}

// recorder writes sink traffic after the originating change committed.
// Failures are logged and never returned.
type recorder struct {
	sinks       Sinks
	idGenerator func() string
	now         func() time.Time
}

func (r recorder) audit(ctx context.Context, logger *slog.Logger, rec auditRecord) {
	if r.sinks.Audit == nil {
		return
	}
	entry := security.AuditEntry{
		ID:          r.idGenerator(),
		ActorID:     rec.actor,
		Action:      rec.action,
		Description: rec.description,
		ObjectType:  rec.objectType,
		ObjectID:    rec.objectID,
		IP:          rec.client.IP,
		UserAgent:   rec.client.UserAgent,
		Data:        rec.data,
		Timestamp:   r.now(),
	}
	if err := r.sinks.Audit.AppendAudit(ctx, entry); err != nil {
		logger.ErrorContext(ctx, "failed to write audit entry", "action", string(rec.action), "error", err)
	}
}

func (r recorder) publish(ctx context.Context, logger *slog.Logger, event events.Event) {
	if r.sinks.Events == nil {
		return
	}
	if event.ID == "" {
		event.ID = r.idGenerator()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now()
	}
	if err := r.sinks.Events.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish event", "event_type", string(event.Type), "error", err)
	}
}

func (r recorder) notify(ctx context.Context, logger *slog.Logger, msg notify.Message) {
	if r.sinks.Notifier == nil || msg.Recipient == "" {
		return
	}
	if err := r.sinks.Notifier.Send(ctx, msg); err != nil {
		err = fmt.Errorf("%w: %w", ErrTransientDelivery, err)
		logger.WarnContext(ctx, "failed to deliver notification",
			"subject", msg.Subject, "error", err, "error_kind", ErrorKind(err))
	}
}


package eventbus

import (
	"context"
	"fmt"
	"log/slog"

	"doctrine/internal/audit"
	"doctrine/internal/intelligence"
	"doctrine/pkg/pipeerrors"
)

const actor = "system:eventbus"

// Trigger reacts to each newly recorded signal event: it writes the audit
// entry synchronously, then queues the downstream notification. If either
// write fails the recording operation must fail with it.
type Trigger struct {
	outbox OutboxStore
	audit  *audit.Publisher
	logger *slog.Logger
}

type TriggerOption func(*Trigger)

func WithTriggerLogger(logger *slog.Logger) TriggerOption {
	return func(t *Trigger) { t.logger = logger }
}

func NewTrigger(outbox OutboxStore, auditPub *audit.Publisher, opts ...TriggerOption) *Trigger {
	t := &Trigger{
		outbox: outbox,
		audit:  auditPub,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// EventRecorded implements intelligence.Trigger.
func (t *Trigger) EventRecorded(ctx context.Context, event intelligence.Event) error {
	if err := t.audit.Emit(ctx, audit.Entry{
		Actor:    actor,
		Action:   audit.ActionSignalRecorded,
		EntityID: string(event.EntityID),
		Before:   event.PreviousValue,
		After:    event.NewValue,
		Reason:   fmt.Sprintf("%s on %s", event.ChangeType, event.Field),
	}); err != nil {
		return err
	}

	notification := Notification{
		EventID:    event.ID,
		EntityID:   event.EntityID,
		ChangeType: event.ChangeType,
		Priority:   PriorityFor(event.ChangeType),
	}
	if err := t.outbox.Enqueue(ctx, notification); err != nil {
		if pipeerrors.HasCode(err, pipeerrors.CodeConflict) {
			return nil
		}
		return err
	}
	t.logger.InfoContext(ctx, "signal queued for delivery",
		"event_id", event.ID, "entity_id", event.EntityID,
		"change_type", event.ChangeType, "priority", notification.Priority)
	return nil
}

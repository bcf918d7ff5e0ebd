package eventbus

import (
	"context"

	"github.com/google/uuid"
)

// OutboxStore queues notifications for asynchronous delivery. Enqueue is
// called in the same logical transaction as the signal recording.
type OutboxStore interface {
	Enqueue(ctx context.Context, notification Notification) error
	// ListUnpublished returns up to limit queued entries in enqueue order,
	// incrementing their attempt count.
	ListUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, eventID uuid.UUID) error
}

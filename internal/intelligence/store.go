package intelligence

import (
	"context"

	"github.com/google/uuid"
)

// EventStore persists signal events. Events are append-only; there is no
// update or delete.
type EventStore interface {
	Insert(ctx context.Context, event *Event) error
	Get(ctx context.Context, id uuid.UUID) (*Event, error)
	ListByEntity(ctx context.Context, entityID string) ([]Event, error)
}

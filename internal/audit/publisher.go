package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists audit entries. Append-only: there is no update or delete.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByEntity(ctx context.Context, entityID string) ([]Entry, error)
}

// Publisher captures structured audit entries. It is append-only and uses
// the storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit assigns an id and timestamp when missing, then appends. Emit is
// synchronous: the caller's transition is not complete until the entry is
// durable.
func (p *Publisher) Emit(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Status == "" {
		entry.Status = StatusSuccess
	}
	return p.store.Append(ctx, entry)
}

// List returns the audit trail for one entity in append order.
func (p *Publisher) List(ctx context.Context, entityID string) ([]Entry, error) {
	return p.store.ListByEntity(ctx, entityID)
}

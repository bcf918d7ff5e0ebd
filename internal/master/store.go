package master

import (
	"context"

	"github.com/google/uuid"
)

// Store persists master records and their slots.
type Store interface {
	// InsertWithSlots atomically inserts a master record together with its
	// full slot set, keyed on source_record_id. When a record for the same
	// source already exists the existing record is returned unchanged with
	// created=false and no slots are touched. A slot referencing a missing
	// parent aborts the whole operation with CodeReferentialViolation.
	InsertWithSlots(ctx context.Context, record *Record, slots []Slot) (result *Record, created bool, err error)

	GetByEntityID(ctx context.Context, id string) (*Record, error)
	GetBySource(ctx context.Context, sourceRecordID uuid.UUID) (*Record, error)
	ListSlots(ctx context.Context, companyID string) ([]Slot, error)
	// UpdateFields replaces the canonical attribute map, used when a
	// detected change is applied back to the master store.
	UpdateFields(ctx context.Context, id string, fields map[string]string) error
}

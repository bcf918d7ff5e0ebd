package intake

import (
	"context"

	"github.com/google/uuid"
)

// Store persists intake records and their validation failures. Records are
// append-then-update: the interface has no delete, the intake table is an
// audit surface.
type Store interface {
	CreateRecord(ctx context.Context, record *Record) error
	GetRecord(ctx context.Context, id uuid.UUID) (*Record, error)
	ListRecordsByStatus(ctx context.Context, status Status) ([]*Record, error)
	UpdateRecord(ctx context.Context, record *Record) error

	// RecordFailure upserts on (record_id, field). A fresh failure starts
	// with one attempt in the auto_fix stage; an existing one has its
	// attempts incremented and raw value refreshed.
	RecordFailure(ctx context.Context, failure *Failure) (*Failure, error)
	GetFailure(ctx context.Context, id uuid.UUID) (*Failure, error)
	ListFailuresByRecord(ctx context.Context, recordID uuid.UUID) ([]*Failure, error)
	ListFailuresByStatus(ctx context.Context, status FailureStatus) ([]*Failure, error)
	UpdateFailure(ctx context.Context, failure *Failure) error
}

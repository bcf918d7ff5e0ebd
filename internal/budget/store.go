package budget

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerStore persists governed calls. Reserve is the one place in the
// pipeline requiring a true atomic read-modify-write: two concurrent
// authorizations racing the same ceiling must not both pass.
type LedgerStore interface {
	// Reserve checks that the effective window sums plus the new estimate
	// stay at or under both ceilings, then records the entry, atomically.
	// On breach it records nothing and returns CodeBudgetRejected.
	Reserve(ctx context.Context, entry *LedgerEntry, dailyStart, monthlyStart time.Time, dailyCeiling, monthlyCeiling decimal.Decimal) error

	// Complete finalizes an entry with its actual cost and terminal status.
	Complete(ctx context.Context, id uuid.UUID, actualCost decimal.Decimal, status string, completedAt time.Time) error

	// SumActualSince totals actual cost of completed entries from start.
	// In-flight reservations are excluded: reconciliation judges money
	// actually spent.
	SumActualSince(ctx context.Context, start time.Time) (decimal.Decimal, error)

	// ListSince returns entries started at or after start, oldest first.
	ListSince(ctx context.Context, start time.Time) ([]LedgerEntry, error)
}

// StateStore persists the governor's operating mode.
type StateStore interface {
	Get(ctx context.Context) (State, error)
	Set(ctx context.Context, state State) error
}

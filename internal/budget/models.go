// Package budget gates every paid external call against rolling spend
// ceilings. It is a deliberate fail-closed circuit breaker: when the
// reconciled spend exceeds a ceiling the governor pauses and every
// subsequent authorization is rejected until a human resumes it.
package budget

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State is the governor's persisted operating mode. It is transitioned only
// through Reconcile and Resume, never through ad-hoc flags.
type State string

const (
	StateActive State = "active"
	StatePaused State = "paused"
)

// CallRequest describes one proposed paid external call.
type CallRequest struct {
	Provider     string
	Purpose      string // e.g. "enrich:email"
	EntityID     string // record or entity the call is on behalf of
	CostEstimate decimal.Decimal
}

// LedgerEntry is one governed external call. Written at authorization time
// and updated on completion; the rolling window sum over entries is the
// enforcement signal.
type LedgerEntry struct {
	ID           uuid.UUID
	Provider     string
	Purpose      string
	EntityID     string
	CostEstimate decimal.Decimal
	// ActualCost is what the provider actually charged, known only after
	// completion. A timed-out call that incurred no cost completes with
	// zero and stops counting against the budget.
	ActualCost  decimal.Decimal
	Status      string // authorized, completed, failed
	StartedAt   time.Time
	CompletedAt *time.Time
}

const (
	CallAuthorized = "authorized"
	CallCompleted  = "completed"
	CallFailed     = "failed"
)

// EffectiveCost is what an entry contributes to a window sum: the actual
// cost once known, the estimate while in flight.
func (e LedgerEntry) EffectiveCost() decimal.Decimal {
	if e.CompletedAt != nil {
		return e.ActualCost
	}
	return e.CostEstimate
}

// Period selects the reconciliation window.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// WindowStart returns the inclusive start of the period containing now.
func (p Period) WindowStart(now time.Time) time.Time {
	now = now.UTC()
	switch p {
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}

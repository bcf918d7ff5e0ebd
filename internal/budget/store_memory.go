package budget

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"doctrine/pkg/pipeerrors"
)

// MemoryLedger is the in-process LedgerStore. A single mutex serializes
// Reserve, giving the same atomicity the PostgreSQL store gets from its
// transaction-scoped advisory lock.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*LedgerEntry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[uuid.UUID]*LedgerEntry)}
}

func (s *MemoryLedger) Reserve(_ context.Context, entry *LedgerEntry, dailyStart, monthlyStart time.Time, dailyCeiling, monthlyCeiling decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	daily := s.sumEffectiveLocked(dailyStart)
	if daily.Add(entry.CostEstimate).GreaterThan(dailyCeiling) {
		return pipeerrors.Newf(pipeerrors.CodeBudgetRejected,
			"daily spend %s + %s exceeds ceiling %s", daily, entry.CostEstimate, dailyCeiling)
	}
	monthly := s.sumEffectiveLocked(monthlyStart)
	if monthly.Add(entry.CostEstimate).GreaterThan(monthlyCeiling) {
		return pipeerrors.Newf(pipeerrors.CodeBudgetRejected,
			"monthly spend %s + %s exceeds ceiling %s", monthly, entry.CostEstimate, monthlyCeiling)
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	stored := *entry
	s.entries[stored.ID] = &stored
	return nil
}

func (s *MemoryLedger) Complete(_ context.Context, id uuid.UUID, actualCost decimal.Decimal, status string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return pipeerrors.Newf(pipeerrors.CodeNotFound, "ledger entry %s not found", id)
	}
	entry.ActualCost = actualCost
	entry.Status = status
	entry.CompletedAt = &completedAt
	return nil
}

func (s *MemoryLedger) SumActualSince(_ context.Context, start time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, entry := range s.entries {
		if entry.CompletedAt != nil && !entry.StartedAt.Before(start) {
			sum = sum.Add(entry.ActualCost)
		}
	}
	return sum, nil
}

func (s *MemoryLedger) ListSince(_ context.Context, start time.Time) ([]LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []LedgerEntry
	for _, entry := range s.entries {
		if !entry.StartedAt.Before(start) {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *MemoryLedger) sumEffectiveLocked(start time.Time) decimal.Decimal {
	sum := decimal.Zero
	for _, entry := range s.entries {
		if !entry.StartedAt.Before(start) {
			sum = sum.Add(entry.EffectiveCost())
		}
	}
	return sum
}

// MemoryStateStore holds the governor state in process.
type MemoryStateStore struct {
	mu    sync.RWMutex
	state State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{state: StateActive}
}

func (s *MemoryStateStore) Get(context.Context) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

func (s *MemoryStateStore) Set(_ context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

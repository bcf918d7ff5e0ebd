package budget

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doctrine/internal/audit"
	"doctrine/internal/platform/config"
	"doctrine/pkg/pipeerrors"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testConfig() config.Budget {
	return config.Budget{
		PerCallCeiling: dec("10.00"),
		DailyCeiling:   dec("25.00"),
		MonthlyCeiling: dec("500.00"),
		CallTimeout:    5 * time.Second,
	}
}

func newGovernor(t *testing.T, cfg config.Budget) (*Governor, *MemoryLedger, *audit.MemoryStore) {
	t.Helper()
	ledger := NewMemoryLedger()
	auditStore := audit.NewMemoryStore()
	gov := New(ledger, NewMemoryStateStore(), audit.NewPublisher(auditStore), cfg)
	return gov, ledger, auditStore
}

func TestAuthorize_UnderCeilingAllows(t *testing.T) {
	gov, _, auditStore := newGovernor(t, testConfig())
	ctx := context.Background()

	entry, err := gov.Authorize(ctx, CallRequest{
		Provider: "clearcheck", Purpose: "enrich:email", EntityID: "rec-1",
		CostEstimate: dec("2.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, CallAuthorized, entry.Status)

	entries := auditStore.All()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionCallAuthorized, entries[0].Action)
}

func TestAuthorize_PerCallCeiling(t *testing.T) {
	gov, _, _ := newGovernor(t, testConfig())

	_, err := gov.Authorize(context.Background(), CallRequest{
		Provider: "clearcheck", CostEstimate: dec("10.01"),
	})
	require.Error(t, err)
	assert.True(t, pipeerrors.HasCode(err, pipeerrors.CodeBudgetRejected))
}

func TestAuthorize_FailClosedSequence(t *testing.T) {
	// Ceiling 25, calls summing 27: authorization holds while the running
	// sum stays at or under 25, then rejects.
	gov, _, _ := newGovernor(t, testConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := gov.Authorize(ctx, CallRequest{Provider: "p", CostEstimate: dec("5.00")})
		require.NoError(t, err, "call %d within ceiling", i+1)
	}
	_, err := gov.Authorize(ctx, CallRequest{Provider: "p", CostEstimate: dec("2.00")})
	require.Error(t, err, "running sum would reach 27")
	assert.True(t, pipeerrors.HasCode(err, pipeerrors.CodeBudgetRejected))
}

func TestAuthorize_ConcurrentRaceCannotBothPass(t *testing.T) {
	cfg := testConfig()
	cfg.DailyCeiling = dec("5.00")
	gov, _, _ := newGovernor(t, cfg)
	ctx := context.Background()

	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = gov.Authorize(ctx, CallRequest{Provider: "p", CostEstimate: dec("3.00")})
		}()
	}
	wg.Wait()

	allowed := 0
	for _, err := range errs {
		if err == nil {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed, "only one 3.00 call fits under a 5.00 ceiling")
}

func TestComplete_TimeoutWithNoCostFreesBudget(t *testing.T) {
	cfg := testConfig()
	cfg.DailyCeiling = dec("5.00")
	gov, _, _ := newGovernor(t, cfg)
	ctx := context.Background()

	entry, err := gov.Authorize(ctx, CallRequest{Provider: "p", CostEstimate: dec("4.00")})
	require.NoError(t, err)

	// While reserved, a second 4.00 call cannot fit.
	_, err = gov.Authorize(ctx, CallRequest{Provider: "p", CostEstimate: dec("4.00")})
	require.Error(t, err)

	// The call timed out without incurring cost: completing at zero
	// releases the reservation.
	require.NoError(t, gov.Complete(ctx, entry.ID, decimal.Zero, false))

	_, err = gov.Authorize(ctx, CallRequest{Provider: "p", CostEstimate: dec("4.00")})
	require.NoError(t, err)
}

func TestReconcile_PausesOnceAndResumeIsAudited(t *testing.T) {
	gov, ledger, auditStore := newGovernor(t, testConfig())
	ctx := context.Background()

	// Each estimate fits the remaining headroom, but actual costs come in
	// higher and push the reconciled day to 27 against the 25 ceiling.
	for i := 0; i < 3; i++ {
		entry, err := gov.Authorize(ctx, CallRequest{Provider: "p", CostEstimate: dec("7.00")})
		require.NoError(t, err)
		require.NoError(t, gov.Complete(ctx, entry.ID, dec("9.00"), true))
	}
	sum, err := ledger.SumActualSince(ctx, PeriodDay.WindowStart(time.Now()))
	require.NoError(t, err)
	assert.True(t, sum.Equal(dec("27.00")))

	state, err := gov.Reconcile(ctx, PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, StatePaused, state)

	// Paused: every authorization rejects pre-flight.
	_, err = gov.Authorize(ctx, CallRequest{Provider: "p", CostEstimate: dec("0.01")})
	require.Error(t, err)
	assert.True(t, pipeerrors.HasCode(err, pipeerrors.CodeGovernorPaused))

	// Reconciling again while paused does not re-pause.
	pausedEntries := 0
	for _, e := range auditStore.All() {
		if e.Action == audit.ActionGovernorPaused {
			pausedEntries++
		}
	}
	assert.Equal(t, 1, pausedEntries)
	state, err = gov.Reconcile(ctx, PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, StatePaused, state)
	pausedEntries = 0
	for _, e := range auditStore.All() {
		if e.Action == audit.ActionGovernorPaused {
			pausedEntries++
		}
	}
	assert.Equal(t, 1, pausedEntries, "pause transitions exactly once")

	// Resume restores authorization and records the actor.
	require.NoError(t, gov.Resume(ctx, "ops-oncall"))
	var resumed *audit.Entry
	for _, e := range auditStore.All() {
		if e.Action == audit.ActionGovernorResumed {
			resumed = &e
			break
		}
	}
	require.NotNil(t, resumed)
	assert.Equal(t, "human:ops-oncall", resumed.Actor)
}

func TestResume_RequiresActorAndPausedState(t *testing.T) {
	gov, _, _ := newGovernor(t, testConfig())
	ctx := context.Background()

	err := gov.Resume(ctx, "")
	require.Error(t, err)
	assert.True(t, pipeerrors.HasCode(err, pipeerrors.CodeBadRequest))

	err = gov.Resume(ctx, "ops")
	require.Error(t, err)
	assert.True(t, pipeerrors.HasCode(err, pipeerrors.CodeConflict))
}

func TestPeriod_WindowStart(t *testing.T) {
	now := time.Date(2026, time.August, 25, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC), PeriodDay.WindowStart(now))
	assert.Equal(t, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), PeriodMonth.WindowStart(now))
}

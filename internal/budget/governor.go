package budget

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"doctrine/internal/audit"
	"doctrine/internal/budget/metrics"
	"doctrine/internal/platform/config"
	"doctrine/pkg/pipeerrors"
)

const actor = "system:budget"

// Governor authorizes paid external calls against the spend ceilings and
// circuit-breaks the whole enrichment path when reconciliation finds the
// ceiling breached.
type Governor struct {
	ledger  LedgerStore
	state   StateStore
	audit   *audit.Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     config.Budget
	now     func() time.Time
}

type Option func(*Governor)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Governor) { g.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Governor) { g.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

func New(ledger LedgerStore, state StateStore, auditPub *audit.Publisher, cfg config.Budget, opts ...Option) *Governor {
	g := &Governor{
		ledger: ledger,
		state:  state,
		audit:  auditPub,
		logger: slog.Default(),
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CallTimeout is the per-call network timeout callers must apply to the
// governed call itself.
func (g *Governor) CallTimeout() time.Duration { return g.cfg.CallTimeout }

// State returns the persisted operating mode.
func (g *Governor) State(ctx context.Context) (State, error) {
	return g.state.Get(ctx)
}

// Ledger lists governed calls from the given period start.
func (g *Governor) Ledger(ctx context.Context, period Period) ([]LedgerEntry, error) {
	return g.ledger.ListSince(ctx, period.WindowStart(g.now()))
}

// Authorize gates one proposed call. The ledger reservation is atomic:
// two concurrent calls racing the same ceiling cannot both pass. Every
// outcome is audited; a rejection is a hard stop for that call, not a
// transient error.
func (g *Governor) Authorize(ctx context.Context, call CallRequest) (*LedgerEntry, error) {
	state, err := g.state.Get(ctx)
	if err != nil {
		return nil, pipeerrors.Wrap(err, pipeerrors.CodeInternal, "read governor state")
	}
	if state == StatePaused {
		return nil, g.reject(ctx, call, pipeerrors.CodeGovernorPaused, "governor is paused")
	}

	if call.CostEstimate.GreaterThan(g.cfg.PerCallCeiling) {
		return nil, g.reject(ctx, call, pipeerrors.CodeBudgetRejected,
			"cost estimate "+call.CostEstimate.String()+" exceeds per-call ceiling "+g.cfg.PerCallCeiling.String())
	}

	now := g.now()
	entry := &LedgerEntry{
		Provider:     call.Provider,
		Purpose:      call.Purpose,
		EntityID:     call.EntityID,
		CostEstimate: call.CostEstimate,
		Status:       CallAuthorized,
		StartedAt:    now,
	}
	err = g.ledger.Reserve(ctx, entry,
		PeriodDay.WindowStart(now), PeriodMonth.WindowStart(now),
		g.cfg.DailyCeiling, g.cfg.MonthlyCeiling)
	if err != nil {
		if pipeerrors.HasCode(err, pipeerrors.CodeBudgetRejected) {
			return nil, g.reject(ctx, call, pipeerrors.CodeBudgetRejected, err.Error())
		}
		return nil, pipeerrors.Wrap(err, pipeerrors.CodeInternal, "reserve ledger entry")
	}

	if g.metrics != nil {
		g.metrics.CallsAuthorized.Inc()
	}
	if err := g.audit.Emit(ctx, audit.Entry{
		Actor:    actor,
		Action:   audit.ActionCallAuthorized,
		EntityID: call.EntityID,
		After:    call.Provider + "/" + call.Purpose + " est " + call.CostEstimate.String(),
	}); err != nil {
		return nil, err
	}
	return entry, nil
}

// Complete finalizes a governed call with the cost actually incurred. A
// timeout with no partial cost completes with zero and does not count
// against the budget.
func (g *Governor) Complete(ctx context.Context, entryID uuid.UUID, actualCost decimal.Decimal, succeeded bool) error {
	status := CallCompleted
	auditStatus := audit.StatusSuccess
	if !succeeded {
		status = CallFailed
		auditStatus = audit.StatusFailure
	}
	if err := g.ledger.Complete(ctx, entryID, actualCost, status, g.now()); err != nil {
		return err
	}
	return g.audit.Emit(ctx, audit.Entry{
		Actor:    actor,
		Action:   audit.ActionCallCompleted,
		EntityID: entryID.String(),
		After:    "actual " + actualCost.String(),
		Status:   auditStatus,
	})
}

// Reconcile sums actual ledger cost for the elapsed period and pauses the
// governor when it exceeds the period's ceiling. Pausing is fail-closed:
// authorization stays rejected until an explicit, audited Resume.
func (g *Governor) Reconcile(ctx context.Context, period Period) (State, error) {
	ceiling := g.cfg.DailyCeiling
	if period == PeriodMonth {
		ceiling = g.cfg.MonthlyCeiling
	}
	spent, err := g.ledger.SumActualSince(ctx, period.WindowStart(g.now()))
	if err != nil {
		return "", pipeerrors.Wrap(err, pipeerrors.CodeInternal, "sum reconciled spend")
	}

	state, err := g.state.Get(ctx)
	if err != nil {
		return "", pipeerrors.Wrap(err, pipeerrors.CodeInternal, "read governor state")
	}

	if spent.LessThanOrEqual(ceiling) {
		g.logger.InfoContext(ctx, "budget reconciled",
			"period", period, "spent", spent.String(), "ceiling", ceiling.String(), "state", state)
		return state, nil
	}

	if state == StatePaused {
		return StatePaused, nil
	}
	if err := g.state.Set(ctx, StatePaused); err != nil {
		return "", pipeerrors.Wrap(err, pipeerrors.CodeInternal, "pause governor")
	}
	if g.metrics != nil {
		g.metrics.Paused.Set(1)
	}
	if err := g.audit.Emit(ctx, audit.Entry{
		Actor:  actor,
		Action: audit.ActionGovernorPaused,
		Before: string(StateActive),
		After:  string(StatePaused),
		Reason: "reconciled " + string(period) + " spend " + spent.String() + " exceeds ceiling " + ceiling.String(),
	}); err != nil {
		return "", err
	}
	g.logger.WarnContext(ctx, "budget governor paused",
		"period", period, "spent", spent.String(), "ceiling", ceiling.String())
	return StatePaused, nil
}

// Resume reactivates a paused governor. Only a human issues it, and the
// actor lands in the audit trail.
func (g *Governor) Resume(ctx context.Context, resumedBy string) error {
	if resumedBy == "" {
		return pipeerrors.New(pipeerrors.CodeBadRequest, "resume requires an actor")
	}
	state, err := g.state.Get(ctx)
	if err != nil {
		return pipeerrors.Wrap(err, pipeerrors.CodeInternal, "read governor state")
	}
	if state == StateActive {
		return pipeerrors.New(pipeerrors.CodeConflict, "governor is not paused")
	}
	if err := g.state.Set(ctx, StateActive); err != nil {
		return pipeerrors.Wrap(err, pipeerrors.CodeInternal, "resume governor")
	}
	if g.metrics != nil {
		g.metrics.Paused.Set(0)
	}
	if err := g.audit.Emit(ctx, audit.Entry{
		Actor:  "human:" + resumedBy,
		Action: audit.ActionGovernorResumed,
		Before: string(StatePaused),
		After:  string(StateActive),
	}); err != nil {
		return err
	}
	g.logger.InfoContext(ctx, "budget governor resumed", "resumed_by", resumedBy)
	return nil
}

func (g *Governor) reject(ctx context.Context, call CallRequest, code pipeerrors.Code, reason string) error {
	if g.metrics != nil {
		g.metrics.CallsRejected.WithLabelValues(string(code)).Inc()
	}
	if err := g.audit.Emit(ctx, audit.Entry{
		Actor:    actor,
		Action:   audit.ActionCallRejected,
		EntityID: call.EntityID,
		Status:   audit.StatusFailure,
		Reason:   reason,
	}); err != nil {
		g.logger.ErrorContext(ctx, "audit emit failed", "error", err)
	}
	g.logger.WarnContext(ctx, "paid call rejected",
		"provider", call.Provider, "purpose", call.Purpose, "reason", reason)
	return pipeerrors.New(code, reason)
}

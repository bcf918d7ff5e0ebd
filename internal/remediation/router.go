package remediation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"doctrine/internal/audit"
	"doctrine/internal/budget"
	"doctrine/internal/intake"
	"doctrine/internal/validation"
	"doctrine/pkg/pipeerrors"
)

const actor = "system:remediation"

// Router walks pending validation failures through the remediation state
// machine. Terminal outcomes are fixed (the owning record re-validates) or
// escalated (the failure parks in human review and is never auto-processed
// again).
type Router struct {
	store       intake.Store
	engine      *validation.Engine
	governor    *budget.Governor
	providers   []EnrichmentProvider
	audit       *audit.Publisher
	logger      *slog.Logger
	maxAttempts int
}

type Option func(*Router)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

func WithMaxAttempts(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithProviders(providers ...EnrichmentProvider) Option {
	return func(r *Router) { r.providers = providers }
}

func NewRouter(store intake.Store, engine *validation.Engine, governor *budget.Governor, auditPub *audit.Publisher, opts ...Option) *Router {
	r := &Router{
		store:       store,
		engine:      engine,
		governor:    governor,
		audit:       auditPub,
		logger:      slog.Default(),
		maxAttempts: 3,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process runs one failure as far through the state machine as a single pass
// can take it.
func (r *Router) Process(ctx context.Context, failureID uuid.UUID) (*intake.Failure, error) {
	failure, err := r.store.GetFailure(ctx, failureID)
	if err != nil {
		return nil, err
	}
	if failure.Status != intake.FailurePending {
		return failure, nil
	}
	record, err := r.store.GetRecord(ctx, failure.RecordID)
	if err != nil {
		return nil, err
	}

	if failure.Attempts > r.maxAttempts {
		return r.escalate(ctx, failure, fmt.Sprintf("attempt cap %d exceeded", r.maxAttempts))
	}

	if failure.Stage == intake.StageAutoFix {
		fixed, done, err := r.tryAutoFix(ctx, record, failure)
		if err != nil || done {
			return fixed, err
		}
		failure.Stage = intake.StageExternalEnrichment
		if err := r.store.UpdateFailure(ctx, failure); err != nil {
			return nil, err
		}
	}

	return r.enrich(ctx, record, failure)
}

// Sweep processes every pending failure once.
func (r *Router) Sweep(ctx context.Context) (fixed, escalated int, err error) {
	failures, err := r.store.ListFailuresByStatus(ctx, intake.FailurePending)
	if err != nil {
		return 0, 0, err
	}
	for _, failure := range failures {
		processed, err := r.Process(ctx, failure.ID)
		if err != nil {
			return fixed, escalated, err
		}
		switch processed.Status {
		case intake.FailureFixed:
			fixed++
		case intake.FailureEscalated:
			escalated++
		}
	}
	return fixed, escalated, nil
}

// tryAutoFix runs the free deterministic transform for the field and accepts
// it only if the field's validator passes the proposed value.
func (r *Router) tryAutoFix(ctx context.Context, record *intake.Record, failure *intake.Failure) (*intake.Failure, bool, error) {
	fix, ok := AutoFix(failure.Field, failure.RawValue)
	if !ok {
		return failure, false, nil
	}
	if !r.verifies(record, failure.Field, fix.Value) {
		failure.TriedValues = append(failure.TriedValues, fix.Value)
		failure.Confidence = append(failure.Confidence, fix.Confidence)
		if err := r.store.UpdateFailure(ctx, failure); err != nil {
			return nil, false, err
		}
		return failure, false, nil
	}
	fixed, err := r.markFixed(ctx, record, failure, fix.Value, fix.Confidence, audit.ActionFailureAutoFixed)
	return fixed, err == nil, err
}

// enrich runs the paid lookup chain. Every call is individually authorized; a
// governor rejection is a hard stop routed straight to human review, never a
// retry.
func (r *Router) enrich(ctx context.Context, record *intake.Record, failure *intake.Failure) (*intake.Failure, error) {
	if len(r.providers) == 0 {
		return r.escalate(ctx, failure, "no enrichment providers configured")
	}

	query := Query{Field: failure.Field, RawValue: failure.RawValue, Context: record.Fields}
	for _, provider := range r.providers {
		entry, err := r.governor.Authorize(ctx, budget.CallRequest{
			Provider:     provider.Name(),
			Purpose:      "enrich:" + failure.Field,
			EntityID:     failure.RecordID.String(),
			CostEstimate: provider.EstimateCost(query),
		})
		if err != nil {
			if pipeerrors.HasCode(err, pipeerrors.CodeBudgetRejected) ||
				pipeerrors.HasCode(err, pipeerrors.CodeGovernorPaused) {
				return r.escalate(ctx, failure, "budget rejected: "+err.Error())
			}
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, r.governor.CallTimeout())
		result, callErr := provider.Call(callCtx, query)
		cancel()
		if callErr != nil {
			// A timeout or provider error counts against the attempt cap but
			// not against the budget unless partial cost was incurred.
			if err := r.governor.Complete(ctx, entry.ID, decimal.Zero, false); err != nil {
				return nil, err
			}
			r.logger.WarnContext(ctx, "enrichment call failed",
				"provider", provider.Name(), "field", failure.Field, "error", callErr)
			if failure, err = r.recordAttempt(ctx, failure); err != nil {
				return nil, err
			}
			if failure.Status == intake.FailureEscalated {
				return failure, nil
			}
			continue
		}
		if err := r.governor.Complete(ctx, entry.ID, result.ActualCost, true); err != nil {
			return nil, err
		}

		if r.verifies(record, failure.Field, result.Value) {
			return r.markFixed(ctx, record, failure, result.Value, result.Confidence, audit.ActionFailureEnriched)
		}
		failure.TriedValues = append(failure.TriedValues, result.Value)
		failure.Confidence = append(failure.Confidence, result.Confidence)
		if failure, err = r.recordAttempt(ctx, failure); err != nil {
			return nil, err
		}
		if failure.Status == intake.FailureEscalated {
			return failure, nil
		}
	}
	return r.escalate(ctx, failure, "all enrichment providers exhausted")
}

func (r *Router) verifies(record *intake.Record, field, value string) bool {
	validator, ok := validation.ValidatorFor(record.Kind, field)
	if !ok {
		return false
	}
	_, fieldErr := validator(value)
	return fieldErr == nil
}

func (r *Router) recordAttempt(ctx context.Context, failure *intake.Failure) (*intake.Failure, error) {
	failure.Attempts++
	if failure.Attempts > r.maxAttempts {
		return r.escalate(ctx, failure, fmt.Sprintf("attempt cap %d exceeded", r.maxAttempts))
	}
	if err := r.store.UpdateFailure(ctx, failure); err != nil {
		return nil, err
	}
	return failure, nil
}

// markFixed finalizes a repaired failure, writes the repaired value into the
// owning record, and re-validates the record once every one of its failures
// is fixed.
func (r *Router) markFixed(ctx context.Context, record *intake.Record, failure *intake.Failure, value string, confidence float64, action audit.Action) (*intake.Failure, error) {
	failure.Status = intake.FailureFixed
	failure.TriedValues = append(failure.TriedValues, value)
	failure.Confidence = append(failure.Confidence, confidence)
	if err := r.store.UpdateFailure(ctx, failure); err != nil {
		return nil, err
	}

	record.Fields[failure.Field] = value
	if err := r.store.UpdateRecord(ctx, record); err != nil {
		return nil, err
	}

	if err := r.audit.Emit(ctx, audit.Entry{
		Actor:    actor,
		Action:   action,
		EntityID: record.ID.String(),
		Before:   failure.RawValue,
		After:    value,
		Reason:   fmt.Sprintf("%s confidence %.2f", failure.Field, confidence),
	}); err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "validation failure fixed",
		"record_id", record.ID, "field", failure.Field, "confidence", confidence)

	allFixed, err := r.allFailuresFixed(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if allFixed {
		if err := r.audit.Emit(ctx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionFailureReattempt,
			EntityID: record.ID.String(),
			Reason:   "all failures fixed, re-validating",
		}); err != nil {
			return nil, err
		}
		if _, _, err := r.engine.ValidateRecord(ctx, record.ID); err != nil {
			return nil, err
		}
	}
	return failure, nil
}

func (r *Router) allFailuresFixed(ctx context.Context, recordID uuid.UUID) (bool, error) {
	failures, err := r.store.ListFailuresByRecord(ctx, recordID)
	if err != nil {
		return false, err
	}
	for _, f := range failures {
		if f.Status != intake.FailureFixed {
			return false, nil
		}
	}
	return len(failures) > 0, nil
}

func (r *Router) escalate(ctx context.Context, failure *intake.Failure, reason string) (*intake.Failure, error) {
	failure.Status = intake.FailureEscalated
	failure.Stage = intake.StageHumanReview
	if err := r.store.UpdateFailure(ctx, failure); err != nil {
		return nil, err
	}
	if err := r.audit.Emit(ctx, audit.Entry{
		Actor:    actor,
		Action:   audit.ActionFailureEscalated,
		EntityID: failure.RecordID.String(),
		Status:   audit.StatusFailure,
		Reason:   reason,
	}); err != nil {
		return nil, err
	}
	r.logger.WarnContext(ctx, "validation failure escalated to human review",
		"record_id", failure.RecordID, "field", failure.Field,
		"attempts", failure.Attempts, "reason", reason)
	return failure, nil
}

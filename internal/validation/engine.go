package validation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"doctrine/internal/audit"
	"doctrine/internal/intake"
	"doctrine/pkg/entity"
	"doctrine/pkg/pipeerrors"
)

const actor = "system:validation"

// rule binds a field to its validator. Order is stable so failure listings
// and audit snapshots are deterministic.
type rule struct {
	field     string
	validator Validator
}

var companyRules = []rule{
	{intake.FieldCompanyName, Name(intake.FieldCompanyName)},
	{intake.FieldWebsite, Optional(Website(intake.FieldWebsite))},
	{intake.FieldEmail, Optional(Email(intake.FieldEmail))},
	{intake.FieldPhone, Optional(Phone(intake.FieldPhone))},
	{intake.FieldState, State(intake.FieldState)},
	{intake.FieldIndustry, Optional(Industry(intake.FieldIndustry))},
	{intake.FieldEmployeeCount, Optional(EmployeeCount(intake.FieldEmployeeCount))},
}

var personRules = []rule{
	{intake.FieldFullName, Name(intake.FieldFullName)},
	{intake.FieldTitle, Name(intake.FieldTitle)},
	{intake.FieldEmail, Optional(Email(intake.FieldEmail))},
	{intake.FieldPhone, Optional(Phone(intake.FieldPhone))},
	{intake.FieldCompanyName, Optional(Name(intake.FieldCompanyName))},
}

func rulesFor(kind entity.Kind) ([]rule, error) {
	switch kind {
	case entity.KindCompany:
		return companyRules, nil
	case entity.KindPerson:
		return personRules, nil
	default:
		return nil, pipeerrors.Newf(pipeerrors.CodeBadRequest, "no validation rules for kind %q", kind)
	}
}

// ValidatorFor returns the validator a kind applies to one field. Used by
// remediation to verify a candidate fix before marking a failure fixed.
func ValidatorFor(kind entity.Kind, field string) (Validator, bool) {
	rules, err := rulesFor(kind)
	if err != nil {
		return nil, false
	}
	for _, r := range rules {
		if r.field == field {
			return r.validator, true
		}
	}
	return nil, false
}

// Engine validates intake records and persists the resulting transitions.
type Engine struct {
	store  intake.Store
	audit  *audit.Publisher
	logger *slog.Logger
	// sweepWorkers bounds the pending-record sweep. Records validate in
	// parallel; fields within one record always validate together.
	sweepWorkers int
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithSweepWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sweepWorkers = n
		}
	}
}

func NewEngine(store intake.Store, auditPub *audit.Publisher, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		audit:        auditPub,
		logger:       slog.Default(),
		sweepWorkers: 8,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate is the pure core: it runs every field rule and returns either
// the fully normalized field map or the complete list of field errors. A
// record is valid iff all of its field validators pass.
func Validate(record *intake.Record) (map[string]string, []FieldError, error) {
	rules, err := rulesFor(record.Kind)
	if err != nil {
		return nil, nil, err
	}

	normalized := make(map[string]string, len(rules))
	var fieldErrs []FieldError
	for _, r := range rules {
		value, fieldErr := r.validator(record.Fields[r.field])
		if fieldErr != nil {
			fieldErrs = append(fieldErrs, *fieldErr)
			continue
		}
		if value != "" {
			normalized[r.field] = value
		}
	}
	if len(fieldErrs) > 0 {
		return nil, fieldErrs, nil
	}
	return normalized, nil, nil
}

// ValidateRecord loads one record, validates it, and persists the outcome:
// pending -> validated on success, pending -> failed plus one upserted
// ValidationFailure per field error otherwise. Both paths write audit
// entries.
func (e *Engine) ValidateRecord(ctx context.Context, recordID uuid.UUID) (*intake.Record, []FieldError, error) {
	record, err := e.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, nil, err
	}

	before := string(record.Status)
	normalized, fieldErrs, err := Validate(record)
	if err != nil {
		return nil, nil, err
	}

	if len(fieldErrs) == 0 {
		record.Status = intake.StatusValidated
		record.Normalized = normalized
		if err := e.store.UpdateRecord(ctx, record); err != nil {
			return nil, nil, err
		}
		if err := e.audit.Emit(ctx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionRecordValidated,
			EntityID: record.ID.String(),
			Before:   before,
			After:    string(intake.StatusValidated),
		}); err != nil {
			return nil, nil, err
		}
		e.logger.InfoContext(ctx, "intake record validated", "record_id", record.ID, "kind", record.Kind)
		return record, nil, nil
	}

	record.Status = intake.StatusFailed
	record.Normalized = nil
	if err := e.store.UpdateRecord(ctx, record); err != nil {
		return nil, nil, err
	}
	for _, fe := range fieldErrs {
		if _, err := e.store.RecordFailure(ctx, &intake.Failure{
			RecordID:       record.ID,
			Field:          fe.Field,
			ErrorType:      fe.ErrorType,
			RawValue:       fe.RawValue,
			ExpectedFormat: fe.ExpectedFormat,
		}); err != nil {
			return nil, nil, err
		}
	}
	if err := e.audit.Emit(ctx, audit.Entry{
		Actor:    actor,
		Action:   audit.ActionRecordFailed,
		EntityID: record.ID.String(),
		Before:   before,
		After:    string(intake.StatusFailed),
		Status:   audit.StatusFailure,
		Reason:   fmt.Sprintf("%d field error(s)", len(fieldErrs)),
	}); err != nil {
		return nil, nil, err
	}
	e.logger.InfoContext(ctx, "intake record failed validation",
		"record_id", record.ID, "kind", record.Kind, "field_errors", len(fieldErrs))
	return record, fieldErrs, nil
}

// ValidatePending validates every pending record. Records run in parallel
// with a bounded worker count; each record's pass/fail decision still
// depends on all of its field results together.
func (e *Engine) ValidatePending(ctx context.Context) (validated, failed int, err error) {
	records, err := e.store.ListRecordsByStatus(ctx, intake.StatusPending)
	if err != nil {
		return 0, 0, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.sweepWorkers)

	results := make([]intake.Status, len(records))
	for i, record := range records {
		g.Go(func() error {
			updated, _, err := e.ValidateRecord(ctx, record.ID)
			if err != nil {
				return err
			}
			results[i] = updated.Status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	for _, status := range results {
		switch status {
		case intake.StatusValidated:
			validated++
		case intake.StatusFailed:
			failed++
		}
	}
	return validated, failed, nil
}

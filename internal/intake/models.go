// Package intake owns the raw ingestion records and their validation
// failures. Records are created by the intake feed collaborator; only the
// validation engine and promotion service mutate them, and they are never
// deleted.
package intake

import (
	"time"

	"github.com/google/uuid"

	"doctrine/pkg/entity"
)

// Status is the lifecycle of an intake record. The pipeline owns this
// column exclusively.
type Status string

const (
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
	StatusFailed    Status = "failed"
)

// Well-known field names shared by validators, auto-fixers, and tests.
const (
	FieldCompanyName   = "company_name"
	FieldWebsite       = "website"
	FieldEmail         = "email"
	FieldPhone         = "phone"
	FieldState         = "state"
	FieldIndustry      = "industry"
	FieldEmployeeCount = "employee_count"
	FieldFullName      = "full_name"
	FieldTitle         = "title"
)

// Record is one raw, unvalidated candidate entity.
type Record struct {
	ID         uuid.UUID
	Kind       entity.Kind       // target master kind: company or person
	Fields     map[string]string // raw attributes as delivered by the feed
	Normalized map[string]string // set when validation passes
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clone returns a deep copy so callers can mutate without aliasing store
// state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Fields = cloneMap(r.Fields)
	out.Normalized = cloneMap(r.Normalized)
	return &out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// FailureStatus is the lifecycle of a validation failure. fixed triggers
// re-validation of the owning record; escalated is terminal.
type FailureStatus string

const (
	FailurePending   FailureStatus = "pending"
	FailureFixed     FailureStatus = "fixed"
	FailureEscalated FailureStatus = "escalated"
)

// Stage tracks where a pending failure sits in the remediation state
// machine.
type Stage string

const (
	StageAutoFix            Stage = "auto_fix"
	StageExternalEnrichment Stage = "external_enrichment"
	StageHumanReview        Stage = "human_review"
)

// Failure is one (record, field) validation failure. Re-validating the same
// bad value increments Attempts rather than creating a new row.
type Failure struct {
	ID             uuid.UUID
	RecordID       uuid.UUID
	Field          string
	ErrorType      string
	RawValue       string
	ExpectedFormat string
	Attempts       int
	Status         FailureStatus
	Stage          Stage
	// Remediation context carried into human review: every value tried and
	// the confidence score logged with each attempt.
	TriedValues []string
	Confidence  []float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy of the failure.
func (f *Failure) Clone() *Failure {
	if f == nil {
		return nil
	}
	out := *f
	out.TriedValues = append([]string(nil), f.TriedValues...)
	out.Confidence = append([]float64(nil), f.Confidence...)
	return &out
}

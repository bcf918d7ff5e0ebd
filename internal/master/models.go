// Package master owns the canonical promoted records and their mandatory
// slot dependents.
package master

import (
	"time"

	"github.com/google/uuid"

	"doctrine/pkg/entity"
)

// Record is one canonical, promoted entity. SourceRecordID is the
// deterministic conflict key: exactly one master record may exist per
// promoted intake record, so re-running promotion is a no-op.
type Record struct {
	EntityID       entity.ID
	Kind           entity.Kind
	SourceRecordID uuid.UUID
	Fields         map[string]string // normalized attributes from validation
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Fields != nil {
		out.Fields = make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return &out
}

// Slot is one role placeholder under a company master record. The slot set
// is created in the promotion transaction and nowhere else; its cardinality
// per parent is constant for an install.
type Slot struct {
	EntityID  entity.ID
	CompanyID entity.ID
	Position  int
	Filled    bool
	PersonID  *entity.ID
	CreatedAt time.Time
}

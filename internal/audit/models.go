package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one append-only log row recording a state transition anywhere in
// the pipeline. Every component that changes state writes one, success or
// failure, so the audit log is the single source of truth for what happened.
type Entry struct {
	ID        uuid.UUID
	Timestamp time.Time
	Actor     string // "system:<component>" or "human:<identifier>"
	Action    Action
	EntityID  string // entity id or intake record id the transition applies to
	Before    string // snapshot before the transition, empty when not applicable
	After     string // snapshot after the transition
	Status    string // "success" or "failure"
	Reason    string // populated on failure or rejection
}

// Action enumerates every audited state transition.
type Action string

const (
	// Intake and validation
	ActionRecordValidated Action = "record_validated"
	ActionRecordFailed    Action = "record_failed"

	// Remediation
	ActionFailureAutoFixed Action = "failure_auto_fixed"
	ActionFailureEnriched  Action = "failure_enriched"
	ActionFailureEscalated Action = "failure_escalated"
	ActionFailureReattempt Action = "failure_reattempted"

	// Promotion
	ActionRecordPromoted   Action = "record_promoted"
	ActionPromotionAborted Action = "promotion_aborted"

	// Intelligence
	ActionSignalRecorded  Action = "signal_recorded"
	ActionSignalPublished Action = "signal_published"

	// Budget governor
	ActionCallAuthorized  Action = "call_authorized"
	ActionCallRejected    Action = "call_rejected"
	ActionCallCompleted   Action = "call_completed"
	ActionGovernorPaused  Action = "governor_paused"
	ActionGovernorResumed Action = "governor_resumed"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

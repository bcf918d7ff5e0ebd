// Package eventbus turns newly recorded signal events into audit entries and
// at-least-once downstream notifications. The producing transaction commits
// the audit entry and outbox row synchronously; delivery happens
// asynchronously and may be retried, so consumers dedupe on event_id.
package eventbus

import (
	"time"

	"github.com/google/uuid"

	"doctrine/internal/intelligence"
	"doctrine/pkg/entity"
)

// Priority ranks a notification for the downstream campaign consumer.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

// PriorityFor derives the notification priority from the change type.
func PriorityFor(changeType intelligence.ChangeType) Priority {
	switch changeType {
	case intelligence.ChangePromotion, intelligence.ChangeNewAffiliation:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// Notification is the at-least-once payload delivered downstream. EventID is
// the consumer's idempotency key: re-delivery of the same event must not
// create a duplicate campaign.
type Notification struct {
	EventID    uuid.UUID               `json:"event_id"`
	EntityID   entity.ID               `json:"entity_id"`
	ChangeType intelligence.ChangeType `json:"change_type"`
	Priority   Priority                `json:"priority"`
}

// OutboxEntry is one queued notification. Rows stay until a worker publishes
// them and marks them published; a crash between publish and mark causes a
// re-delivery, which consumers absorb.
type OutboxEntry struct {
	Notification Notification
	Attempts     int
	EnqueuedAt   time.Time
	PublishedAt  *time.Time
}

// Package intelligence detects field-level changes to promoted entities and
// records them as immutable signal events.
package intelligence

import (
	"time"

	"github.com/google/uuid"

	"doctrine/pkg/entity"
)

// ChangeType classifies one detected delta. Company-affiliation changes take
// precedence over title changes, which take precedence over contact data.
type ChangeType string

const (
	ChangePromotion      ChangeType = "promotion"
	ChangeLateralMove    ChangeType = "lateral_move"
	ChangeDeparture      ChangeType = "departure"
	ChangeNewAffiliation ChangeType = "new_affiliation"
	ChangeContact        ChangeType = "contact_change"
)

// Event is one detected change to a promoted entity. Events are append-only:
// created by the detector, never mutated or deleted.
type Event struct {
	ID            uuid.UUID
	EntityID      entity.ID
	ChangeType    ChangeType
	Field         string
	PreviousValue string // empty when the field was previously unknown
	NewValue      string // empty on departure
	DetectedAt    time.Time
	Verified      bool
	Confidence    float64
}

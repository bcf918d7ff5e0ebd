package intelligence

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"doctrine/internal/intake"
	"doctrine/internal/master"
	"doctrine/pkg/pipeerrors"
)

// Trigger is notified synchronously after each event is recorded. The event
// bus implements it; tests substitute a recorder.
type Trigger interface {
	EventRecorded(ctx context.Context, event Event) error
}

// Detector diffs freshly fetched snapshots against the master store and
// records one event per material delta.
type Detector struct {
	master  master.Store
	events  EventStore
	trigger Trigger
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Detector)

func WithTrigger(trigger Trigger) Option {
	return func(d *Detector) { d.trigger = trigger }
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

func NewDetector(masterStore master.Store, events EventStore, opts ...Option) *Detector {
	d := &Detector{
		master: masterStore,
		events: events,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// contactFields are compared individually after the company and title rules
// have run.
var contactFields = []string{
	intake.FieldEmail,
	intake.FieldPhone,
	intake.FieldWebsite,
	intake.FieldState,
	intake.FieldIndustry,
	intake.FieldEmployeeCount,
	intake.FieldTitle,
}

// DetectChanges compares a fresh snapshot against the stored master record
// and records one event per detected delta. Comparison is NULL-safe: an
// unknown field becoming known is a change, two unknowns are not. Unpromoted
// ids are skipped without error, and the accepted snapshot is written back to
// the master store so re-running with identical input records nothing.
func (d *Detector) DetectChanges(ctx context.Context, masterID string, snapshot map[string]string) ([]Event, error) {
	record, err := d.master.GetByEntityID(ctx, masterID)
	if err != nil {
		if pipeerrors.HasCode(err, pipeerrors.CodeNotFound) {
			d.logger.DebugContext(ctx, "skipping unpromoted entity", "entity_id", masterID)
			return nil, nil
		}
		return nil, err
	}

	detectedAt := d.now()
	events := d.classify(record.Fields, snapshot)
	if len(events) == 0 {
		return nil, nil
	}

	updated := applySnapshot(record.Fields, events)
	for i := range events {
		events[i].ID = uuid.New()
		events[i].EntityID = record.EntityID
		events[i].DetectedAt = detectedAt
		if err := d.events.Insert(ctx, &events[i]); err != nil {
			return nil, err
		}
		if d.trigger != nil {
			if err := d.trigger.EventRecorded(ctx, events[i]); err != nil {
				return nil, err
			}
		}
	}
	if err := d.master.UpdateFields(ctx, masterID, updated); err != nil {
		return nil, err
	}
	d.logger.InfoContext(ctx, "changes detected",
		"entity_id", masterID, "events", len(events))
	return events, nil
}

// classify applies the taxonomy in precedence order: a company change
// subsumes any title change on the same snapshot; contact deltas are always
// reported individually.
func (d *Detector) classify(stored, fresh map[string]string) []Event {
	var events []Event

	prevCompany, newCompany, companyChanged := delta(stored, fresh, intake.FieldCompanyName)
	if companyChanged {
		switch {
		case newCompany == "":
			events = append(events, Event{
				ChangeType: ChangeDeparture, Field: intake.FieldCompanyName,
				PreviousValue: prevCompany, Confidence: 0.8,
			})
		case prevCompany == "":
			events = append(events, Event{
				ChangeType: ChangeNewAffiliation, Field: intake.FieldCompanyName,
				NewValue: newCompany, Confidence: 1.0,
			})
		default:
			events = append(events, Event{
				ChangeType: ChangeNewAffiliation, Field: intake.FieldCompanyName,
				PreviousValue: prevCompany, NewValue: newCompany, Confidence: 0.9,
			})
		}
	}

	for _, field := range contactFields {
		prev, next, changed := delta(stored, fresh, field)
		if !changed || next == "" {
			continue
		}
		if field == intake.FieldTitle && !companyChanged && prev != "" {
			events = append(events, classifyTitle(prev, next))
			continue
		}
		if field == intake.FieldTitle && companyChanged {
			continue
		}
		events = append(events, Event{
			ChangeType: ChangeContact, Field: field,
			PreviousValue: prev, NewValue: next, Confidence: 1.0,
		})
	}
	return events
}

// classifyTitle distinguishes a move up the ladder from a sideways move. The
// taxonomy has no demotion type, so any seniority-rank change classifies as
// promotion; equal or unranked titles classify as lateral moves.
func classifyTitle(prev, next string) Event {
	changeType := ChangeLateralMove
	confidence := 0.7
	if seniorityRank(prev) != seniorityRank(next) {
		changeType = ChangePromotion
		confidence = 0.85
	}
	return Event{
		ChangeType: changeType, Field: intake.FieldTitle,
		PreviousValue: prev, NewValue: next, Confidence: confidence,
	}
}

var seniorityLadder = []struct {
	keyword string
	rank    int
}{
	{"chief", 6}, {"president", 6}, {"founder", 6}, {"owner", 6},
	{"executive vice president", 5}, {"senior vice president", 5}, {"evp", 5}, {"svp", 5},
	{"vice president", 4}, {"vp", 4},
	{"director", 3}, {"head of", 3},
	{"manager", 2}, {"lead", 2},
}

func seniorityRank(title string) int {
	title = strings.ToLower(title)
	for _, level := range seniorityLadder {
		if strings.Contains(title, level.keyword) {
			return level.rank
		}
	}
	return 0
}

// delta is the NULL-safe field comparison. A missing snapshot key is unknown,
// not a removal; only an explicit empty value clears a field, and only the
// company rule acts on that.
func delta(stored, fresh map[string]string, field string) (prev, next string, changed bool) {
	next, present := fresh[field]
	prev = stored[field]
	if !present {
		return prev, "", false
	}
	next = strings.TrimSpace(next)
	if next == prev {
		return prev, next, false
	}
	if next == "" && field != intake.FieldCompanyName {
		return prev, next, false
	}
	if next == "" && prev == "" {
		return prev, next, false
	}
	return prev, next, true
}

// applySnapshot folds the detected deltas back into the canonical field map.
func applySnapshot(stored map[string]string, events []Event) map[string]string {
	updated := make(map[string]string, len(stored))
	for k, v := range stored {
		updated[k] = v
	}
	for _, event := range events {
		if event.ChangeType == ChangeDeparture {
			delete(updated, event.Field)
			continue
		}
		updated[event.Field] = event.NewValue
	}
	return updated
}

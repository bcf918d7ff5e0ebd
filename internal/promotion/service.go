// Package promotion materializes validated intake records into the master
// store. Promotion is idempotent and transactional: a master record never
// exists without its full slot set, and re-promoting is a no-op.
package promotion

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"doctrine/internal/audit"
	"doctrine/internal/identity"
	"doctrine/internal/intake"
	"doctrine/internal/master"
	"doctrine/pkg/entity"
	"doctrine/pkg/pipeerrors"
)

const actor = "system:promotion"

type Service struct {
	intakeStore intake.Store
	masterStore master.Store
	ids         *identity.Generator
	audit       *audit.Publisher
	logger      *slog.Logger
	// slotsPerCompany is fixed per install; slots are created only inside
	// the promotion transaction.
	slotsPerCompany int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(intakeStore intake.Store, masterStore master.Store, ids *identity.Generator, auditPub *audit.Publisher, slotsPerCompany int, opts ...Option) *Service {
	s := &Service{
		intakeStore:     intakeStore,
		masterStore:     masterStore,
		ids:             ids,
		audit:           auditPub,
		logger:          slog.Default(),
		slotsPerCompany: slotsPerCompany,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Promote upserts the master record for a validated intake record. The
// conflict key is the source record id, never the generated entity id, so
// concurrent or repeated promotions collapse to one master record with
// exactly one slot set.
func (s *Service) Promote(ctx context.Context, intakeID uuid.UUID) (*master.Record, error) {
	record, err := s.intakeStore.GetRecord(ctx, intakeID)
	if err != nil {
		return nil, err
	}
	if record.Status != intake.StatusValidated {
		return nil, pipeerrors.Newf(pipeerrors.CodeConflict,
			"intake record %s is %s, only validated records promote", intakeID, record.Status)
	}

	// Fast path: already promoted. Skipping straight to the existing row
	// avoids burning generated ids on retries; the store upsert still
	// guards the concurrent case.
	if existing, err := s.masterStore.GetBySource(ctx, intakeID); err == nil {
		return existing, nil
	} else if !pipeerrors.HasCode(err, pipeerrors.CodeNotFound) {
		return nil, err
	}

	entityID, err := s.ids.NewID(ctx, record.Kind)
	if err != nil {
		return nil, err
	}

	var slots []master.Slot
	if record.Kind == entity.KindCompany {
		slots = make([]master.Slot, 0, s.slotsPerCompany)
		for i := 1; i <= s.slotsPerCompany; i++ {
			slotID, err := s.ids.NewID(ctx, entity.KindSlot)
			if err != nil {
				return nil, err
			}
			slots = append(slots, master.Slot{
				EntityID:  slotID,
				CompanyID: entityID,
				Position:  i,
				Filled:    false,
			})
		}
	}

	result, created, err := s.masterStore.InsertWithSlots(ctx, &master.Record{
		EntityID:       entityID,
		Kind:           record.Kind,
		SourceRecordID: record.ID,
		Fields:         record.Normalized,
	}, slots)
	if err != nil {
		if auditErr := s.audit.Emit(ctx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionPromotionAborted,
			EntityID: record.ID.String(),
			Status:   audit.StatusFailure,
			Reason:   err.Error(),
		}); auditErr != nil {
			s.logger.ErrorContext(ctx, "audit emit failed", "error", auditErr)
		}
		return nil, err
	}

	if created {
		if err := s.audit.Emit(ctx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionRecordPromoted,
			EntityID: result.EntityID.String(),
			Before:   record.ID.String(),
			After:    result.EntityID.String(),
		}); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "intake record promoted",
			"record_id", record.ID, "entity_id", result.EntityID, "kind", result.Kind, "slots", len(slots))
	}
	return result, nil
}

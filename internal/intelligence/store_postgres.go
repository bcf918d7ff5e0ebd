package intelligence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"doctrine/pkg/entity"
	"doctrine/pkg/pipeerrors"
)

// PostgresEventStore persists signal events in intelligence_events.
type PostgresEventStore struct {
	db *sql.DB
}

func NewPostgresEventStore(db *sql.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

func (s *PostgresEventStore) Insert(ctx context.Context, event *Event) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO intelligence_events (id, entity_id, change_type, field, previous_value, new_value, detected_at, verified, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, event.ID, string(event.EntityID), string(event.ChangeType), event.Field,
		event.PreviousValue, event.NewValue, event.DetectedAt, event.Verified, event.Confidence)
	if err != nil {
		return fmt.Errorf("insert intelligence event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pipeerrors.Newf(pipeerrors.CodeConflict, "event %s already recorded", event.ID)
	}
	return nil
}

func (s *PostgresEventStore) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, entity_id, change_type, field, previous_value, new_value, detected_at, verified, confidence
		FROM intelligence_events
		WHERE id = $1
	`, id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pipeerrors.Newf(pipeerrors.CodeNotFound, "event %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get intelligence event: %w", err)
	}
	return event, nil
}

func (s *PostgresEventStore) ListByEntity(ctx context.Context, entityID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, change_type, field, previous_value, new_value, detected_at, verified, confidence
		FROM intelligence_events
		WHERE entity_id = $1
		ORDER BY detected_at ASC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list intelligence events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intelligence event: %w", err)
		}
		out = append(out, *event)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		event      Event
		entityID   string
		changeType string
	)
	if err := row.Scan(&event.ID, &entityID, &changeType, &event.Field,
		&event.PreviousValue, &event.NewValue, &event.DetectedAt, &event.Verified, &event.Confidence); err != nil {
		return nil, err
	}
	event.EntityID = entity.ID(entityID)
	event.ChangeType = ChangeType(changeType)
	return &event, nil
}

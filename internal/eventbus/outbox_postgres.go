package eventbus

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"doctrine/internal/intelligence"
	"doctrine/pkg/entity"
	"doctrine/pkg/pipeerrors"
)

// PostgresOutbox persists queued notifications in signal_outbox. Enqueue is
// idempotent on event_id so a retried detection cannot double-queue.
type PostgresOutbox struct {
	db *sql.DB
}

func NewPostgresOutbox(db *sql.DB) *PostgresOutbox {
	return &PostgresOutbox{db: db}
}

func (s *PostgresOutbox) Enqueue(ctx context.Context, notification Notification) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO signal_outbox (event_id, entity_id, change_type, priority, attempts, enqueued_at)
		VALUES ($1, $2, $3, $4, 0, $5)
		ON CONFLICT (event_id) DO NOTHING
	`, notification.EventID, string(notification.EntityID),
		string(notification.ChangeType), string(notification.Priority), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pipeerrors.Newf(pipeerrors.CodeConflict, "notification %s already queued", notification.EventID)
	}
	return nil
}

func (s *PostgresOutbox) ListUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE signal_outbox
		SET attempts = attempts + 1
		WHERE event_id IN (
			SELECT event_id FROM signal_outbox
			WHERE published_at IS NULL
			ORDER BY enqueued_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING event_id, entity_id, change_type, priority, attempts, enqueued_at
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished notifications: %w", err)
	}
	defer rows.Close()

	var out []OutboxEntry
	for rows.Next() {
		var (
			entry      OutboxEntry
			entityID   string
			changeType string
			priority   string
		)
		if err := rows.Scan(&entry.Notification.EventID, &entityID, &changeType,
			&priority, &entry.Attempts, &entry.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entry.Notification.EntityID = entity.ID(entityID)
		entry.Notification.ChangeType = intelligence.ChangeType(changeType)
		entry.Notification.Priority = Priority(priority)
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *PostgresOutbox) MarkPublished(ctx context.Context, eventID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE signal_outbox
		SET published_at = NOW()
		WHERE event_id = $1 AND published_at IS NULL
	`, eventID)
	if err != nil {
		return fmt.Errorf("mark notification published: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pipeerrors.Newf(pipeerrors.CodeNotFound, "notification %s not queued", eventID)
	}
	return nil
}

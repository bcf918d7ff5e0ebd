package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists audit entries. Inserts are idempotent on entry id
// so a retried Emit cannot duplicate a row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO audit_entries (id, ts, actor, action, entity_id, before_snapshot, after_snapshot, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.Timestamp, entry.Actor, string(entry.Action),
		entry.EntityID, entry.Before, entry.After, entry.Status, entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entityID string) ([]Entry, error) {
	query := `
		SELECT id, ts, actor, action, entity_id, before_snapshot, after_snapshot, status, reason
		FROM audit_entries
		WHERE entity_id = $1
		ORDER BY ts ASC
	`
	rows, err := s.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var action string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &action, &e.EntityID, &e.Before, &e.After, &e.Status, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}

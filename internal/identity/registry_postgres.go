package identity

import (
	"context"
	"database/sql"
	"fmt"

	"doctrine/pkg/entity"
	"doctrine/pkg/pipeerrors"
)

// PostgresRegistry backs id uniqueness with the entity_ids primary key.
type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) Claim(ctx context.Context, id entity.ID) error {
	kind, err := id.Kind()
	if err != nil {
		return err
	}
	query := `
		INSERT INTO entity_ids (id, kind, issued_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, id.String(), string(kind))
	if err != nil {
		return fmt.Errorf("claim entity id: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim entity id: %w", err)
	}
	if affected == 0 {
		return pipeerrors.Newf(pipeerrors.CodeConflict, "entity id %s already issued", id)
	}
	return nil
}

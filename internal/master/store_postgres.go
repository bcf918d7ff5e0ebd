package master

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"doctrine/pkg/entity"
	"doctrine/pkg/pipeerrors"
)

// PostgresStore persists master records and slots. The promotion upsert
// relies on the database's native atomic ON CONFLICT so two concurrent
// promotions of the same intake record collapse to one master record
// without application-level locking.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const fkViolation = "23503"

func (s *PostgresStore) InsertWithSlots(ctx context.Context, record *Record, slots []Slot) (*Record, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin promotion tx: %w", err)
	}
	defer tx.Rollback()

	fields, err := json.Marshal(record.Fields)
	if err != nil {
		return nil, false, fmt.Errorf("marshal master fields: %w", err)
	}

	insert := `
		INSERT INTO master_records (entity_id, kind, source_record_id, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (source_record_id) DO NOTHING
		RETURNING entity_id, kind, source_record_id, fields, created_at, updated_at
	`
	inserted, err := scanMaster(tx.QueryRowContext(ctx, insert,
		record.EntityID.String(), string(record.Kind), record.SourceRecordID, fields))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("insert master record: %w", err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race or re-promoted: the existing row wins, untouched.
		existing, err := scanMaster(tx.QueryRowContext(ctx, `
			SELECT entity_id, kind, source_record_id, fields, created_at, updated_at
			FROM master_records WHERE source_record_id = $1
		`, record.SourceRecordID))
		if err != nil {
			return nil, false, fmt.Errorf("load existing master record: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("commit promotion tx: %w", err)
		}
		return existing, false, nil
	}

	for _, slot := range slots {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO slot_records (entity_id, company_id, position, filled, person_id, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`, slot.EntityID.String(), slot.CompanyID.String(), slot.Position, slot.Filled, slotPerson(slot))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == fkViolation {
				return nil, false, pipeerrors.Wrap(err, pipeerrors.CodeReferentialViolation,
					"slot references a missing parent, promotion aborted")
			}
			return nil, false, fmt.Errorf("insert slot record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit promotion tx: %w", err)
	}
	return inserted, true, nil
}

func (s *PostgresStore) GetByEntityID(ctx context.Context, id string) (*Record, error) {
	record, err := scanMaster(s.db.QueryRowContext(ctx, `
		SELECT entity_id, kind, source_record_id, fields, created_at, updated_at
		FROM master_records WHERE entity_id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pipeerrors.Newf(pipeerrors.CodeNotFound, "master record %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get master record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) GetBySource(ctx context.Context, sourceRecordID uuid.UUID) (*Record, error) {
	record, err := scanMaster(s.db.QueryRowContext(ctx, `
		SELECT entity_id, kind, source_record_id, fields, created_at, updated_at
		FROM master_records WHERE source_record_id = $1
	`, sourceRecordID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pipeerrors.Newf(pipeerrors.CodeNotFound, "no master record for source %s", sourceRecordID)
	}
	if err != nil {
		return nil, fmt.Errorf("get master record by source: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListSlots(ctx context.Context, companyID string) ([]Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, company_id, position, filled, person_id, created_at
		FROM slot_records WHERE company_id = $1
		ORDER BY position ASC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		var (
			slot     Slot
			eid, cid string
			person   sql.NullString
		)
		if err := rows.Scan(&eid, &cid, &slot.Position, &slot.Filled, &person, &slot.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slot.EntityID = entity.ID(eid)
		slot.CompanyID = entity.ID(cid)
		if person.Valid {
			pid := entity.ID(person.String)
			slot.PersonID = &pid
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateFields(ctx context.Context, id string, fields map[string]string) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal master fields: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE master_records SET fields = $2, updated_at = NOW() WHERE entity_id = $1
	`, id, payload)
	if err != nil {
		return fmt.Errorf("update master fields: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pipeerrors.Newf(pipeerrors.CodeNotFound, "master record %s not found", id)
	}
	return nil
}

func slotPerson(slot Slot) any {
	if slot.PersonID == nil {
		return nil
	}
	return slot.PersonID.String()
}

func scanMaster(row *sql.Row) (*Record, error) {
	var (
		record Record
		eid    string
		kind   string
		fields []byte
	)
	if err := row.Scan(&eid, &kind, &record.SourceRecordID, &fields, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, err
	}
	record.EntityID = entity.ID(eid)
	record.Kind = entity.Kind(kind)
	if err := json.Unmarshal(fields, &record.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal master fields: %w", err)
	}
	return &record, nil
}

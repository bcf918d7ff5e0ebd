package intake

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"doctrine/pkg/entity"
	"doctrine/pkg/pipeerrors"
)

// PostgresStore persists intake records and validation failures. Field maps
// are stored as JSONB; the (record_id, field) unique constraint backs the
// failure upsert.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateRecord(ctx context.Context, record *Record) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Status == "" {
		record.Status = StatusPending
	}
	fields, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("marshal intake fields: %w", err)
	}
	query := `
		INSERT INTO intake_records (id, kind, fields, normalized, status, created_at, updated_at)
		VALUES ($1, $2, $3, NULL, $4, NOW(), NOW())
	`
	if _, err := s.db.ExecContext(ctx, query, record.ID, string(record.Kind), fields, string(record.Status)); err != nil {
		return fmt.Errorf("create intake record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	query := `
		SELECT id, kind, fields, normalized, status, created_at, updated_at
		FROM intake_records
		WHERE id = $1
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, pipeerrors.Newf(pipeerrors.CodeNotFound, "intake record %s not found", id)
		}
		return nil, fmt.Errorf("get intake record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListRecordsByStatus(ctx context.Context, status Status) ([]*Record, error) {
	query := `
		SELECT id, kind, fields, normalized, status, created_at, updated_at
		FROM intake_records
		WHERE status = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list intake records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intake record: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateRecord(ctx context.Context, record *Record) error {
	normalized, err := marshalNullable(record.Normalized)
	if err != nil {
		return fmt.Errorf("marshal normalized fields: %w", err)
	}
	fields, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("marshal intake fields: %w", err)
	}
	query := `
		UPDATE intake_records
		SET fields = $2, normalized = $3, status = $4, updated_at = NOW()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, record.ID, fields, normalized, string(record.Status))
	if err != nil {
		return fmt.Errorf("update intake record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pipeerrors.Newf(pipeerrors.CodeNotFound, "intake record %s not found", record.ID)
	}
	return nil
}

func (s *PostgresStore) RecordFailure(ctx context.Context, failure *Failure) (*Failure, error) {
	id := failure.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	query := `
		INSERT INTO validation_failures
			(id, record_id, field, error_type, raw_value, expected_format, attempts, status, stage, tried_values, confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, '[]'::jsonb, '[]'::jsonb, NOW(), NOW())
		ON CONFLICT (record_id, field) DO UPDATE SET
			attempts = validation_failures.attempts + 1,
			error_type = EXCLUDED.error_type,
			raw_value = EXCLUDED.raw_value,
			expected_format = EXCLUDED.expected_format,
			updated_at = NOW()
		RETURNING id, record_id, field, error_type, raw_value, expected_format, attempts, status, stage, tried_values, confidence, created_at, updated_at
	`
	row := s.db.QueryRowContext(ctx, query,
		id, failure.RecordID, failure.Field, failure.ErrorType,
		failure.RawValue, failure.ExpectedFormat,
		string(FailurePending), string(StageAutoFix),
	)
	out, err := scanFailure(row)
	if err != nil {
		return nil, fmt.Errorf("record validation failure: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetFailure(ctx context.Context, id uuid.UUID) (*Failure, error) {
	query := `
		SELECT id, record_id, field, error_type, raw_value, expected_format, attempts, status, stage, tried_values, confidence, created_at, updated_at
		FROM validation_failures
		WHERE id = $1
	`
	failure, err := scanFailure(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, pipeerrors.Newf(pipeerrors.CodeNotFound, "validation failure %s not found", id)
		}
		return nil, fmt.Errorf("get validation failure: %w", err)
	}
	return failure, nil
}

func (s *PostgresStore) ListFailuresByRecord(ctx context.Context, recordID uuid.UUID) ([]*Failure, error) {
	return s.listFailures(ctx, `record_id = $1`, recordID)
}

func (s *PostgresStore) ListFailuresByStatus(ctx context.Context, status FailureStatus) ([]*Failure, error) {
	return s.listFailures(ctx, `status = $1`, string(status))
}

func (s *PostgresStore) listFailures(ctx context.Context, where string, arg any) ([]*Failure, error) {
	query := `
		SELECT id, record_id, field, error_type, raw_value, expected_format, attempts, status, stage, tried_values, confidence, created_at, updated_at
		FROM validation_failures
		WHERE ` + where + `
		ORDER BY created_at ASC, field ASC
	`
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list validation failures: %w", err)
	}
	defer rows.Close()

	var out []*Failure
	for rows.Next() {
		failure, err := scanFailure(rows)
		if err != nil {
			return nil, fmt.Errorf("scan validation failure: %w", err)
		}
		out = append(out, failure)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateFailure(ctx context.Context, failure *Failure) error {
	tried, err := json.Marshal(failure.TriedValues)
	if err != nil {
		return fmt.Errorf("marshal tried values: %w", err)
	}
	confidence, err := json.Marshal(failure.Confidence)
	if err != nil {
		return fmt.Errorf("marshal confidence history: %w", err)
	}
	query := `
		UPDATE validation_failures
		SET error_type = $2, raw_value = $3, expected_format = $4, attempts = $5,
		    status = $6, stage = $7, tried_values = $8, confidence = $9, updated_at = NOW()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		failure.ID, failure.ErrorType, failure.RawValue, failure.ExpectedFormat,
		failure.Attempts, string(failure.Status), string(failure.Stage), tried, confidence,
	)
	if err != nil {
		return fmt.Errorf("update validation failure: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pipeerrors.Newf(pipeerrors.CodeNotFound, "validation failure %s not found", failure.ID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record     Record
		kind       string
		status     string
		fields     []byte
		normalized []byte
	)
	if err := row.Scan(&record.ID, &kind, &fields, &normalized, &status, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, err
	}
	record.Kind = entity.Kind(kind)
	record.Status = Status(status)
	if err := json.Unmarshal(fields, &record.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	if len(normalized) > 0 {
		if err := json.Unmarshal(normalized, &record.Normalized); err != nil {
			return nil, fmt.Errorf("unmarshal normalized: %w", err)
		}
	}
	return &record, nil
}

func scanFailure(row rowScanner) (*Failure, error) {
	var (
		failure    Failure
		status     string
		stage      string
		tried      []byte
		confidence []byte
	)
	if err := row.Scan(
		&failure.ID, &failure.RecordID, &failure.Field, &failure.ErrorType,
		&failure.RawValue, &failure.ExpectedFormat, &failure.Attempts,
		&status, &stage, &tried, &confidence,
		&failure.CreatedAt, &failure.UpdatedAt,
	); err != nil {
		return nil, err
	}
	failure.Status = FailureStatus(status)
	failure.Stage = Stage(stage)
	if err := json.Unmarshal(tried, &failure.TriedValues); err != nil {
		return nil, fmt.Errorf("unmarshal tried values: %w", err)
	}
	if err := json.Unmarshal(confidence, &failure.Confidence); err != nil {
		return nil, fmt.Errorf("unmarshal confidence history: %w", err)
	}
	return &failure, nil
}

func marshalNullable(m map[string]string) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return b, nil
}

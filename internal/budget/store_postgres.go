package budget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"doctrine/pkg/pipeerrors"
)

// PostgresLedger persists governed calls. Reserve serializes concurrent
// authorizations with a transaction-scoped advisory lock so the
// check-then-insert is a true atomic read-modify-write.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (s *PostgresLedger) Reserve(ctx context.Context, entry *LedgerEntry, dailyStart, monthlyStart time.Time, dailyCeiling, monthlyCeiling decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reserve tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('usage_ledger'))`); err != nil {
		return fmt.Errorf("acquire ledger lock: %w", err)
	}

	sumSince := func(start time.Time) (decimal.Decimal, error) {
		var raw string
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(CASE WHEN completed_at IS NULL THEN cost_estimate ELSE actual_cost END), 0)
			FROM usage_ledger
			WHERE started_at >= $1
		`, start).Scan(&raw)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(raw)
	}

	daily, err := sumSince(dailyStart)
	if err != nil {
		return fmt.Errorf("sum daily spend: %w", err)
	}
	if daily.Add(entry.CostEstimate).GreaterThan(dailyCeiling) {
		return pipeerrors.Newf(pipeerrors.CodeBudgetRejected,
			"daily spend %s + %s exceeds ceiling %s", daily, entry.CostEstimate, dailyCeiling)
	}
	monthly, err := sumSince(monthlyStart)
	if err != nil {
		return fmt.Errorf("sum monthly spend: %w", err)
	}
	if monthly.Add(entry.CostEstimate).GreaterThan(monthlyCeiling) {
		return pipeerrors.Newf(pipeerrors.CodeBudgetRejected,
			"monthly spend %s + %s exceeds ceiling %s", monthly, entry.CostEstimate, monthlyCeiling)
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO usage_ledger (id, provider, purpose, entity_id, cost_estimate, actual_cost, status, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, NULL)
	`, entry.ID, entry.Provider, entry.Purpose, entry.EntityID,
		entry.CostEstimate.String(), entry.Status, entry.StartedAt); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reserve tx: %w", err)
	}
	return nil
}

func (s *PostgresLedger) Complete(ctx context.Context, id uuid.UUID, actualCost decimal.Decimal, status string, completedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE usage_ledger
		SET actual_cost = $2, status = $3, completed_at = $4
		WHERE id = $1
	`, id, actualCost.String(), status, completedAt)
	if err != nil {
		return fmt.Errorf("complete ledger entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pipeerrors.Newf(pipeerrors.CodeNotFound, "ledger entry %s not found", id)
	}
	return nil
}

func (s *PostgresLedger) SumActualSince(ctx context.Context, start time.Time) (decimal.Decimal, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(actual_cost), 0)
		FROM usage_ledger
		WHERE completed_at IS NOT NULL AND started_at >= $1
	`, start).Scan(&raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum actual spend: %w", err)
	}
	return decimal.NewFromString(raw)
}

func (s *PostgresLedger) ListSince(ctx context.Context, start time.Time) ([]LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, purpose, entity_id, cost_estimate, actual_cost, status, started_at, completed_at
		FROM usage_ledger
		WHERE started_at >= $1
		ORDER BY started_at ASC
	`, start)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []LedgerEntry
	for rows.Next() {
		var (
			entry       LedgerEntry
			estimate    string
			actual      string
			completedAt sql.NullTime
		)
		if err := rows.Scan(&entry.ID, &entry.Provider, &entry.Purpose, &entry.EntityID,
			&estimate, &actual, &entry.Status, &entry.StartedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if entry.CostEstimate, err = decimal.NewFromString(estimate); err != nil {
			return nil, fmt.Errorf("parse cost estimate: %w", err)
		}
		if entry.ActualCost, err = decimal.NewFromString(actual); err != nil {
			return nil, fmt.Errorf("parse actual cost: %w", err)
		}
		if completedAt.Valid {
			t := completedAt.Time
			entry.CompletedAt = &t
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// PostgresStateStore persists governor state as a single keyed row.
type PostgresStateStore struct {
	db *sql.DB
}

func NewPostgresStateStore(db *sql.DB) *PostgresStateStore {
	return &PostgresStateStore{db: db}
}

func (s *PostgresStateStore) Get(ctx context.Context) (State, error) {
	var state string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM governor_state WHERE name = 'enrichment'`).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return StateActive, nil
	}
	if err != nil {
		return "", fmt.Errorf("get governor state: %w", err)
	}
	return State(state), nil
}

func (s *PostgresStateStore) Set(ctx context.Context, state State) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO governor_state (name, state, updated_at)
		VALUES ('enrichment', $1, NOW())
		ON CONFLICT (name) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()
	`, string(state))
	if err != nil {
		return fmt.Errorf("set governor state: %w", err)
	}
	return nil
}

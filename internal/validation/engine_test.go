package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doctrine/internal/audit"
	"doctrine/internal/intake"
	"doctrine/pkg/entity"
)

func newEngine(t *testing.T) (*Engine, *intake.MemoryStore, *audit.MemoryStore) {
	t.Helper()
	store := intake.NewMemoryStore()
	auditStore := audit.NewMemoryStore()
	return NewEngine(store, audit.NewPublisher(auditStore)), store, auditStore
}

func seedCompany(t *testing.T, store *intake.MemoryStore, fields map[string]string) *intake.Record {
	t.Helper()
	record := &intake.Record{Kind: entity.KindCompany, Fields: fields}
	require.NoError(t, store.CreateRecord(context.Background(), record))
	return record
}

func TestValidateRecord_CleanRecordValidates(t *testing.T) {
	engine, store, auditStore := newEngine(t)
	record := seedCompany(t, store, map[string]string{
		intake.FieldCompanyName:   "  Acme  Corp ",
		intake.FieldState:         "ca",
		intake.FieldEmail:         "Sales@Acme.com",
		intake.FieldEmployeeCount: "250",
	})

	updated, fieldErrs, err := engine.ValidateRecord(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Empty(t, fieldErrs)
	assert.Equal(t, intake.StatusValidated, updated.Status)
	assert.Equal(t, "Acme Corp", updated.Normalized[intake.FieldCompanyName])
	assert.Equal(t, "CA", updated.Normalized[intake.FieldState])
	assert.Equal(t, "sales@acme.com", updated.Normalized[intake.FieldEmail])

	entries := auditStore.All()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionRecordValidated, entries[0].Action)
	assert.Equal(t, "pending", entries[0].Before)
	assert.Equal(t, "validated", entries[0].After)
}

func TestValidateRecord_BadStateFailsWithTypedError(t *testing.T) {
	engine, store, auditStore := newEngine(t)
	record := seedCompany(t, store, map[string]string{
		intake.FieldCompanyName: "Acme",
		intake.FieldState:       "california",
	})
	ctx := context.Background()

	updated, fieldErrs, err := engine.ValidateRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, intake.StatusFailed, updated.Status)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, ErrInvalidState, fieldErrs[0].ErrorType)

	failures, err := store.ListFailuresByRecord(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, intake.FieldState, failures[0].Field)
	assert.Equal(t, "california", failures[0].RawValue)
	assert.Equal(t, 1, failures[0].Attempts)

	entries := auditStore.All()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionRecordFailed, entries[0].Action)
	assert.Equal(t, audit.StatusFailure, entries[0].Status)
}

func TestValidateRecord_RevalidationIncrementsAttempts(t *testing.T) {
	engine, store, _ := newEngine(t)
	record := seedCompany(t, store, map[string]string{
		intake.FieldCompanyName: "Acme",
		intake.FieldState:       "california",
	})
	ctx := context.Background()

	_, _, err := engine.ValidateRecord(ctx, record.ID)
	require.NoError(t, err)
	_, _, err = engine.ValidateRecord(ctx, record.ID)
	require.NoError(t, err)

	failures, err := store.ListFailuresByRecord(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, failures, 1, "same bad value must not duplicate rows")
	assert.Equal(t, 2, failures[0].Attempts)
}

func TestValidateRecord_MultipleFieldErrors(t *testing.T) {
	engine, store, _ := newEngine(t)
	record := seedCompany(t, store, map[string]string{
		intake.FieldCompanyName:   "",
		intake.FieldState:         "nowhere",
		intake.FieldEmail:         "junk",
		intake.FieldEmployeeCount: "minus two",
	})

	_, fieldErrs, err := engine.ValidateRecord(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Len(t, fieldErrs, 4)

	failures, err := store.ListFailuresByRecord(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Len(t, failures, 4, "one ValidationFailure per field error")
}

func TestValidatePending_SweepsAllPendingRecords(t *testing.T) {
	engine, store, _ := newEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedCompany(t, store, map[string]string{
			intake.FieldCompanyName: "Good Co",
			intake.FieldState:       "NY",
		})
	}
	for i := 0; i < 3; i++ {
		seedCompany(t, store, map[string]string{
			intake.FieldCompanyName: "Bad Co",
			intake.FieldState:       "new york",
		})
	}

	validated, failed, err := engine.ValidatePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, validated)
	assert.Equal(t, 3, failed)

	pending, err := store.ListRecordsByStatus(ctx, intake.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestValidate_PersonRules(t *testing.T) {
	record := &intake.Record{
		Kind: entity.KindPerson,
		Fields: map[string]string{
			intake.FieldFullName: "Dana Mosley",
			intake.FieldTitle:    "VP of Sales",
		},
	}
	normalized, fieldErrs, err := Validate(record)
	require.NoError(t, err)
	assert.Empty(t, fieldErrs)
	assert.Equal(t, "Dana Mosley", normalized[intake.FieldFullName])
	assert.Equal(t, "VP of Sales", normalized[intake.FieldTitle])
}

func TestValidate_UnknownKind(t *testing.T) {
	_, _, err := Validate(&intake.Record{Kind: entity.KindSlot})
	require.Error(t, err)
}

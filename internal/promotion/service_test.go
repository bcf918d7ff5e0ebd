package promotion

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doctrine/internal/audit"
	"doctrine/internal/identity"
	"doctrine/internal/intake"
	"doctrine/internal/master"
	"doctrine/pkg/entity"
	"doctrine/pkg/pipeerrors"
)

const slotsPerCompany = 3

func newService(t *testing.T) (*Service, *intake.MemoryStore, *master.MemoryStore, *audit.MemoryStore) {
	t.Helper()
	intakeStore := intake.NewMemoryStore()
	masterStore := master.NewMemoryStore()
	auditStore := audit.NewMemoryStore()
	svc := New(
		intakeStore,
		masterStore,
		identity.New(identity.NewMemoryRegistry()),
		audit.NewPublisher(auditStore),
		slotsPerCompany,
	)
	return svc, intakeStore, masterStore, auditStore
}

func seedValidated(t *testing.T, store *intake.MemoryStore, kind entity.Kind, normalized map[string]string) *intake.Record {
	t.Helper()
	record := &intake.Record{Kind: kind, Fields: normalized}
	require.NoError(t, store.CreateRecord(context.Background(), record))
	record.Status = intake.StatusValidated
	record.Normalized = normalized
	require.NoError(t, store.UpdateRecord(context.Background(), record))
	return record
}

func TestPromote_CompanyGetsFullSlotSet(t *testing.T) {
	svc, intakeStore, masterStore, auditStore := newService(t)
	ctx := context.Background()
	record := seedValidated(t, intakeStore, entity.KindCompany, map[string]string{
		intake.FieldCompanyName: "Acme Corp",
		intake.FieldState:       "CA",
	})

	promoted, err := svc.Promote(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.KindCompany, promoted.Kind)
	assert.Equal(t, record.ID, promoted.SourceRecordID)
	assert.True(t, promoted.EntityID.Valid())

	slots, err := masterStore.ListSlots(ctx, promoted.EntityID.String())
	require.NoError(t, err)
	require.Len(t, slots, slotsPerCompany)
	for i, slot := range slots {
		assert.Equal(t, i+1, slot.Position)
		assert.False(t, slot.Filled)
		assert.Equal(t, promoted.EntityID, slot.CompanyID)
		kind, err := slot.EntityID.Kind()
		require.NoError(t, err)
		assert.Equal(t, entity.KindSlot, kind)
	}

	entries := auditStore.All()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionRecordPromoted, entries[0].Action)
}

func TestPromote_IsIdempotent(t *testing.T) {
	svc, intakeStore, masterStore, auditStore := newService(t)
	ctx := context.Background()
	record := seedValidated(t, intakeStore, entity.KindCompany, map[string]string{
		intake.FieldCompanyName: "Acme Corp",
	})

	first, err := svc.Promote(ctx, record.ID)
	require.NoError(t, err)
	second, err := svc.Promote(ctx, record.ID)
	require.NoError(t, err)

	assert.Equal(t, first.EntityID, second.EntityID)

	slots, err := masterStore.ListSlots(ctx, first.EntityID.String())
	require.NoError(t, err)
	assert.Len(t, slots, slotsPerCompany, "re-promotion must not add slots")

	assert.Len(t, auditStore.All(), 1, "no-op promotion is not a new transition")
}

func TestPromote_ConcurrentPromotionsCollapse(t *testing.T) {
	svc, intakeStore, masterStore, _ := newService(t)
	ctx := context.Background()
	record := seedValidated(t, intakeStore, entity.KindCompany, map[string]string{
		intake.FieldCompanyName: "Acme Corp",
	})

	const n = 16
	results := make([]*master.Record, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.Promote(ctx, record.ID)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	for _, result := range results[1:] {
		assert.Equal(t, results[0].EntityID, result.EntityID)
	}
	slots, err := masterStore.ListSlots(ctx, results[0].EntityID.String())
	require.NoError(t, err)
	assert.Len(t, slots, slotsPerCompany)
}

func TestPromote_PersonHasNoSlots(t *testing.T) {
	svc, intakeStore, masterStore, _ := newService(t)
	ctx := context.Background()
	record := seedValidated(t, intakeStore, entity.KindPerson, map[string]string{
		intake.FieldFullName: "Dana Mosley",
		intake.FieldTitle:    "Chief Revenue Officer",
	})

	promoted, err := svc.Promote(ctx, record.ID)
	require.NoError(t, err)
	kind, err := promoted.EntityID.Kind()
	require.NoError(t, err)
	assert.Equal(t, entity.KindPerson, kind)

	slots, err := masterStore.ListSlots(ctx, promoted.EntityID.String())
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestPromote_RejectsUnvalidatedRecord(t *testing.T) {
	svc, intakeStore, _, _ := newService(t)
	ctx := context.Background()

	record := &intake.Record{Kind: entity.KindCompany, Fields: map[string]string{}}
	require.NoError(t, intakeStore.CreateRecord(ctx, record))

	_, err := svc.Promote(ctx, record.ID)
	require.Error(t, err)
	assert.True(t, pipeerrors.HasCode(err, pipeerrors.CodeConflict))
}

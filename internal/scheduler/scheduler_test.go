package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doctrine/internal/audit"
	"doctrine/internal/budget"
	"doctrine/internal/intake"
	"doctrine/internal/intelligence"
	"doctrine/internal/master"
	"doctrine/internal/platform/config"
	"doctrine/internal/remediation"
	"doctrine/internal/validation"
	"doctrine/pkg/entity"
)

type mapFetcher struct {
	snapshots map[string]map[string]string
}

func (f *mapFetcher) FetchSnapshots(_ context.Context) (map[string]map[string]string, error) {
	return f.snapshots, nil
}

type fixture struct {
	intakeStore *intake.MemoryStore
	masterStore *master.MemoryStore
	events      *intelligence.MemoryEventStore
	scheduler   *Scheduler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	intakeStore := intake.NewMemoryStore()
	masterStore := master.NewMemoryStore()
	events := intelligence.NewMemoryEventStore()
	auditPub := audit.NewPublisher(audit.NewMemoryStore())
	engine := validation.NewEngine(intakeStore, auditPub)
	governor := budget.New(budget.NewMemoryLedger(), budget.NewMemoryStateStore(), auditPub, config.Budget{
		PerCallCeiling: decimal.RequireFromString("1.50"),
		DailyCeiling:   decimal.RequireFromString("25.00"),
		MonthlyCeiling: decimal.RequireFromString("500.00"),
		CallTimeout:    time.Second,
	})
	router := remediation.NewRouter(intakeStore, engine, governor, auditPub)
	detector := intelligence.NewDetector(masterStore, events)

	cfg := config.Scheduler{RefreshSpec: "@hourly", RemediationSpec: "@hourly"}
	return &fixture{
		intakeStore: intakeStore,
		masterStore: masterStore,
		events:      events,
		scheduler:   New(cfg, detector, router, engine, opts...),
	}
}

func promoteCompany(t *testing.T, store *master.MemoryStore, fields map[string]string) entity.ID {
	t.Helper()
	id, err := entity.Build(entity.KindCompany, time.Now(), 54321, 1)
	require.NoError(t, err)
	_, created, err := store.InsertWithSlots(context.Background(), &master.Record{
		EntityID:       id,
		Kind:           entity.KindCompany,
		SourceRecordID: uuid.New(),
		Fields:         fields,
	}, nil)
	require.NoError(t, err)
	require.True(t, created)
	return id
}

func TestRunRefresh_NoFetcherSkips(t *testing.T) {
	f := newFixture(t)

	recorded, err := f.scheduler.RunRefresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, recorded)
}

func TestRunRefresh_DetectsAcrossSnapshots(t *testing.T) {
	fetcher := &mapFetcher{snapshots: map[string]map[string]string{}}
	f := newFixture(t, WithFetcher(fetcher))

	id := promoteCompany(t, f.masterStore, map[string]string{
		intake.FieldCompanyName: "Acme Corp",
		intake.FieldWebsite:     "https://acme.example",
	})
	fetcher.snapshots[string(id)] = map[string]string{
		intake.FieldWebsite: "https://acme-corp.example",
	}
	// Entities the fetcher knows but the pipeline never promoted are skipped.
	fetcher.snapshots["10.01.02.05.99999.001"] = map[string]string{
		intake.FieldWebsite: "https://ghost.example",
	}

	recorded, err := f.scheduler.RunRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, recorded)

	events, err := f.events.ListByEntity(context.Background(), string(id))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, intelligence.ChangeContact, events[0].ChangeType)
}

func TestRunRemediation_ValidatesThenFixes(t *testing.T) {
	f := newFixture(t)

	record := &intake.Record{
		Kind: entity.KindCompany,
		Fields: map[string]string{
			intake.FieldCompanyName: "Acme Corp",
			intake.FieldState:       "california",
		},
	}
	require.NoError(t, f.intakeStore.CreateRecord(context.Background(), record))

	fixed, escalated, err := f.scheduler.RunRemediation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.Zero(t, escalated)

	updated, err := f.intakeStore.GetRecord(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, intake.StatusValidated, updated.Status)
	assert.Equal(t, "CA", updated.Fields[intake.FieldState])
}

func TestStart_RejectsMalformedSpec(t *testing.T) {
	f := newFixture(t)
	f.scheduler.cfg.RefreshSpec = "not a cron spec"

	err := f.scheduler.Start(context.Background())
	require.Error(t, err)
}

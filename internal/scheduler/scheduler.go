// Package scheduler drives the two recurring entry points: the master-record
// refresh that feeds change detection, and the remediation sweep. Both are
// also manually triggerable through the admin API.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"doctrine/internal/intelligence"
	"doctrine/internal/platform/config"
	"doctrine/internal/remediation"
	"doctrine/internal/validation"
)

// SnapshotFetcher is the external refresh collaborator: it returns current
// external data for already-promoted entities, keyed by entity id.
type SnapshotFetcher interface {
	FetchSnapshots(ctx context.Context) (map[string]map[string]string, error)
}

type Scheduler struct {
	cron     *cron.Cron
	cfg      config.Scheduler
	fetcher  SnapshotFetcher
	detector *intelligence.Detector
	router   *remediation.Router
	engine   *validation.Engine
	logger   *slog.Logger
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithFetcher installs the refresh collaborator. Without one the refresh job
// is skipped; detection still runs on demand through the API.
func WithFetcher(fetcher SnapshotFetcher) Option {
	return func(s *Scheduler) { s.fetcher = fetcher }
}

func New(cfg config.Scheduler, detector *intelligence.Detector, router *remediation.Router, engine *validation.Engine, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:     cron.New(),
		cfg:      cfg,
		detector: detector,
		router:   router,
		engine:   engine,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the cron entries and begins running them.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.RefreshSpec, func() {
		if _, err := s.RunRefresh(ctx); err != nil {
			s.logger.ErrorContext(ctx, "scheduled refresh failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("register refresh schedule %q: %w", s.cfg.RefreshSpec, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.RemediationSpec, func() {
		if _, _, err := s.RunRemediation(ctx); err != nil {
			s.logger.ErrorContext(ctx, "scheduled remediation sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("register remediation schedule %q: %w", s.cfg.RemediationSpec, err)
	}
	s.cron.Start()
	s.logger.InfoContext(ctx, "scheduler started",
		"refresh", s.cfg.RefreshSpec, "remediation", s.cfg.RemediationSpec)
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunRefresh fetches fresh snapshots and runs change detection over them.
// Returns the number of events recorded.
func (s *Scheduler) RunRefresh(ctx context.Context) (int, error) {
	if s.fetcher == nil {
		s.logger.InfoContext(ctx, "no snapshot fetcher configured, refresh skipped")
		return 0, nil
	}
	snapshots, err := s.fetcher.FetchSnapshots(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch snapshots: %w", err)
	}

	recorded := 0
	for entityID, snapshot := range snapshots {
		events, err := s.detector.DetectChanges(ctx, entityID, snapshot)
		if err != nil {
			s.logger.ErrorContext(ctx, "detection failed during refresh",
				"entity_id", entityID, "error", err)
			continue
		}
		recorded += len(events)
	}
	s.logger.InfoContext(ctx, "refresh complete",
		"snapshots", len(snapshots), "events", recorded)
	return recorded, nil
}

// RunRemediation validates pending intake records, then sweeps pending
// failures through the remediation state machine.
func (s *Scheduler) RunRemediation(ctx context.Context) (fixed, escalated int, err error) {
	if _, _, err := s.engine.ValidatePending(ctx); err != nil {
		return 0, 0, err
	}
	fixed, escalated, err = s.router.Sweep(ctx)
	if err != nil {
		return fixed, escalated, err
	}
	s.logger.InfoContext(ctx, "remediation sweep complete",
		"fixed", fixed, "escalated", escalated)
	return fixed, escalated, nil
}

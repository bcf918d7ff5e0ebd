package intake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"doctrine/pkg/pipeerrors"
)

// MemoryStore is the in-process Store used by tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[uuid.UUID]*Record
	failures map[uuid.UUID]*Failure
	// byRecordField indexes failures for the (record, field) upsert.
	byRecordField map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:       make(map[uuid.UUID]*Record),
		failures:      make(map[uuid.UUID]*Failure),
		byRecordField: make(map[string]uuid.UUID),
	}
}

func failureKey(recordID uuid.UUID, field string) string {
	return recordID.String() + "/" + field
}

func (s *MemoryStore) CreateRecord(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if _, exists := s.records[record.ID]; exists {
		return pipeerrors.Newf(pipeerrors.CodeConflict, "intake record %s already exists", record.ID)
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Status == "" {
		record.Status = StatusPending
	}
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, id uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, pipeerrors.Newf(pipeerrors.CodeNotFound, "intake record %s not found", id)
	}
	return record.Clone(), nil
}

func (s *MemoryStore) ListRecordsByStatus(_ context.Context, status Status) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Record
	for _, record := range s.records {
		if record.Status == status {
			out = append(out, record.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateRecord(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; !ok {
		return pipeerrors.Newf(pipeerrors.CodeNotFound, "intake record %s not found", record.ID)
	}
	record.UpdatedAt = time.Now().UTC()
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, failure *Failure) (*Failure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := failureKey(failure.RecordID, failure.Field)
	now := time.Now().UTC()

	if existingID, ok := s.byRecordField[key]; ok {
		existing := s.failures[existingID]
		existing.Attempts++
		existing.ErrorType = failure.ErrorType
		existing.RawValue = failure.RawValue
		existing.ExpectedFormat = failure.ExpectedFormat
		existing.UpdatedAt = now
		return existing.Clone(), nil
	}

	fresh := failure.Clone()
	if fresh.ID == uuid.Nil {
		fresh.ID = uuid.New()
	}
	fresh.Attempts = 1
	fresh.Status = FailurePending
	fresh.Stage = StageAutoFix
	fresh.CreatedAt = now
	fresh.UpdatedAt = now
	s.failures[fresh.ID] = fresh
	s.byRecordField[key] = fresh.ID
	return fresh.Clone(), nil
}

func (s *MemoryStore) GetFailure(_ context.Context, id uuid.UUID) (*Failure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	failure, ok := s.failures[id]
	if !ok {
		return nil, pipeerrors.Newf(pipeerrors.CodeNotFound, "validation failure %s not found", id)
	}
	return failure.Clone(), nil
}

func (s *MemoryStore) ListFailuresByRecord(_ context.Context, recordID uuid.UUID) ([]*Failure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Failure
	for _, failure := range s.failures {
		if failure.RecordID == recordID {
			out = append(out, failure.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out, nil
}

func (s *MemoryStore) ListFailuresByStatus(_ context.Context, status FailureStatus) ([]*Failure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Failure
	for _, failure := range s.failures {
		if failure.Status == status {
			out = append(out, failure.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateFailure(_ context.Context, failure *Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.failures[failure.ID]; !ok {
		return pipeerrors.Newf(pipeerrors.CodeNotFound, "validation failure %s not found", failure.ID)
	}
	failure.UpdatedAt = time.Now().UTC()
	s.failures[failure.ID] = failure.Clone()
	return nil
}

package master

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"doctrine/pkg/pipeerrors"
)

// MemoryStore is the in-process Store used by tests and local development.
// InsertWithSlots holds one lock for the whole operation, mirroring the
// single transaction the PostgreSQL store uses.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]*Record // by entity id
	bySource map[uuid.UUID]string
	slots    map[string][]Slot // by company entity id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]*Record),
		bySource: make(map[uuid.UUID]string),
		slots:    make(map[string][]Slot),
	}
}

func (s *MemoryStore) InsertWithSlots(_ context.Context, record *Record, slots []Slot) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.bySource[record.SourceRecordID]; ok {
		return s.records[existingID].Clone(), false, nil
	}

	for _, slot := range slots {
		if slot.CompanyID != record.EntityID {
			return nil, false, pipeerrors.Newf(pipeerrors.CodeReferentialViolation,
				"slot %s references parent %s, promoting %s", slot.EntityID, slot.CompanyID, record.EntityID)
		}
	}

	now := time.Now().UTC()
	stored := record.Clone()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.records[string(stored.EntityID)] = stored
	s.bySource[stored.SourceRecordID] = string(stored.EntityID)

	storedSlots := make([]Slot, len(slots))
	copy(storedSlots, slots)
	for i := range storedSlots {
		storedSlots[i].CreatedAt = now
	}
	s.slots[string(stored.EntityID)] = storedSlots

	return stored.Clone(), true, nil
}

func (s *MemoryStore) GetByEntityID(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return nil, pipeerrors.Newf(pipeerrors.CodeNotFound, "master record %s not found", id)
	}
	return record.Clone(), nil
}

func (s *MemoryStore) GetBySource(_ context.Context, sourceRecordID uuid.UUID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.bySource[sourceRecordID]
	if !ok {
		return nil, pipeerrors.Newf(pipeerrors.CodeNotFound, "no master record for source %s", sourceRecordID)
	}
	return s.records[id].Clone(), nil
}

func (s *MemoryStore) ListSlots(_ context.Context, companyID string) ([]Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slots := s.slots[companyID]
	out := make([]Slot, len(slots))
	copy(out, slots)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *MemoryStore) UpdateFields(_ context.Context, id string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return pipeerrors.Newf(pipeerrors.CodeNotFound, "master record %s not found", id)
	}
	record.Fields = make(map[string]string, len(fields))
	for k, v := range fields {
		record.Fields[k] = v
	}
	record.UpdatedAt = time.Now().UTC()
	return nil
}

package intelligence

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"doctrine/pkg/pipeerrors"
)

// MemoryEventStore is the in-process EventStore.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[uuid.UUID]*Event
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[uuid.UUID]*Event)}
}

func (s *MemoryEventStore) Insert(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; ok {
		return pipeerrors.Newf(pipeerrors.CodeConflict, "event %s already recorded", event.ID)
	}
	stored := *event
	s.events[stored.ID] = &stored
	return nil
}

func (s *MemoryEventStore) Get(_ context.Context, id uuid.UUID) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	if !ok {
		return nil, pipeerrors.Newf(pipeerrors.CodeNotFound, "event %s not found", id)
	}
	out := *event
	return &out, nil
}

func (s *MemoryEventStore) ListByEntity(_ context.Context, entityID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, event := range s.events {
		if string(event.EntityID) == entityID {
			out = append(out, *event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out, nil
}

// All returns every stored event, for tests.
func (s *MemoryEventStore) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, *event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out
}

package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"doctrine/pkg/pipeerrors"
)

// MemoryOutbox is the in-process OutboxStore.
type MemoryOutbox struct {
	mu      sync.Mutex
	entries []*OutboxEntry
	byID    map[uuid.UUID]*OutboxEntry
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{byID: make(map[uuid.UUID]*OutboxEntry)}
}

func (s *MemoryOutbox) Enqueue(_ context.Context, notification Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[notification.EventID]; ok {
		return pipeerrors.Newf(pipeerrors.CodeConflict, "notification %s already queued", notification.EventID)
	}
	entry := &OutboxEntry{
		Notification: notification,
		EnqueuedAt:   time.Now().UTC(),
	}
	s.entries = append(s.entries, entry)
	s.byID[notification.EventID] = entry
	return nil
}

func (s *MemoryOutbox) ListUnpublished(_ context.Context, limit int) ([]OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []OutboxEntry
	for _, entry := range s.entries {
		if entry.PublishedAt != nil {
			continue
		}
		entry.Attempts++
		out = append(out, *entry)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryOutbox) MarkPublished(_ context.Context, eventID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byID[eventID]
	if !ok {
		return pipeerrors.Newf(pipeerrors.CodeNotFound, "notification %s not queued", eventID)
	}
	if entry.PublishedAt == nil {
		now := time.Now().UTC()
		entry.PublishedAt = &now
	}
	return nil
}

// Pending returns the count of unpublished entries, for tests.
func (s *MemoryOutbox) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, entry := range s.entries {
		if entry.PublishedAt == nil {
			n++
		}
	}
	return n
}

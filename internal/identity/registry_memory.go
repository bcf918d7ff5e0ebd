package identity

import (
	"context"
	"sync"

	"doctrine/pkg/entity"
	"doctrine/pkg/pipeerrors"
)

// MemoryRegistry tracks issued ids in process.
type MemoryRegistry struct {
	mu     sync.Mutex
	issued map[entity.ID]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{issued: make(map[entity.ID]struct{})}
}

func (r *MemoryRegistry) Claim(_ context.Context, id entity.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.issued[id]; taken {
		return pipeerrors.Newf(pipeerrors.CodeConflict, "entity id %s already issued", id)
	}
	r.issued[id] = struct{}{}
	return nil
}

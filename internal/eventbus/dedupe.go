package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Deduper tracks which event ids a consumer has already acted on. The bus is
// at-least-once, so this is where duplicate deliveries die.
type Deduper interface {
	// FirstDelivery reports whether this is the first time the event id has
	// been seen, atomically claiming it when it is.
	FirstDelivery(ctx context.Context, eventID uuid.UUID) (bool, error)
	// Release gives a claim back when the downstream action failed, so the
	// next redelivery is treated as first.
	Release(ctx context.Context, eventID uuid.UUID) error
}

// RedisDeduper claims event ids with SETNX under a retention window long
// enough to outlive any redelivery.
type RedisDeduper struct {
	client    *redis.Client
	keyPrefix string
	retention time.Duration
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{
		client:    client,
		keyPrefix: "doctrine:campaign:event:",
		retention: 7 * 24 * time.Hour,
	}
}

func (d *RedisDeduper) FirstDelivery(ctx context.Context, eventID uuid.UUID) (bool, error) {
	claimed, err := d.client.SetNX(ctx, d.keyPrefix+eventID.String(), 1, d.retention).Result()
	if err != nil {
		return false, fmt.Errorf("claim event id: %w", err)
	}
	return claimed, nil
}

func (d *RedisDeduper) Release(ctx context.Context, eventID uuid.UUID) error {
	if err := d.client.Del(ctx, d.keyPrefix+eventID.String()).Err(); err != nil {
		return fmt.Errorf("release event id: %w", err)
	}
	return nil
}

// MemoryDeduper is the in-process Deduper.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[uuid.UUID]struct{}
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[uuid.UUID]struct{})}
}

func (d *MemoryDeduper) FirstDelivery(_ context.Context, eventID uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[eventID]; ok {
		return false, nil
	}
	d.seen[eventID] = struct{}{}
	return true, nil
}

func (d *MemoryDeduper) Release(_ context.Context, eventID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	return nil
}

package eventbus

import (
	"context"
	"sync"
)

// Publisher delivers one notification downstream. Delivery is at-least-once:
// the outbox worker retries until MarkPublished succeeds, and the same
// notification may therefore be delivered more than once.
type Publisher interface {
	Publish(ctx context.Context, notification Notification) error
}

// Handler consumes delivered notifications.
type Handler func(ctx context.Context, notification Notification) error

// MemoryBus delivers notifications synchronously to in-process subscribers.
// Used by tests and brokerless local runs.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

func (b *MemoryBus) Publish(ctx context.Context, notification Notification) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, notification); err != nil {
			return err
		}
	}
	return nil
}

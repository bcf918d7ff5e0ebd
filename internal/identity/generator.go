// Package identity issues entity identifiers. Generation is retried against
// a uniqueness constraint rather than trusted blindly: a collision
// regenerates, it never overwrites.
package identity

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"doctrine/pkg/entity"
	"doctrine/pkg/pipeerrors"
)

// Registry records every issued id and rejects duplicates. Implementations
// back it with a unique constraint (PostgreSQL) or a map (memory).
type Registry interface {
	// Claim reserves the id. Returns a CodeConflict error when already taken.
	Claim(ctx context.Context, id entity.ID) error
}

const defaultMaxAttempts = 5

// Generator produces fresh, registry-claimed entity ids.
type Generator struct {
	registry    Registry
	logger      *slog.Logger
	maxAttempts int
	seq         atomic.Uint64
	randFn      func() int
	now         func() time.Time
}

type Option func(*Generator)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

func WithMaxAttempts(n int) Option {
	return func(g *Generator) { g.maxAttempts = n }
}

// WithRand injects the random segment source. Tests use it to force
// collisions.
func WithRand(fn func() int) Option {
	return func(g *Generator) { g.randFn = fn }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func New(registry Registry, opts ...Option) *Generator {
	g := &Generator{
		registry:    registry,
		maxAttempts: defaultMaxAttempts,
		randFn:      func() int { return rand.IntN(100000) },
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewID generates and claims an identifier for the given kind. Collisions
// regenerate with fresh random and sequence segments; after maxAttempts the
// call fails with CodeIDCollision, which callers treat as transient.
func (g *Generator) NewID(ctx context.Context, kind entity.Kind) (entity.ID, error) {
	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		id, err := entity.Build(kind, g.now(), g.randFn(), int(g.seq.Add(1)))
		if err != nil {
			return "", err
		}

		err = g.registry.Claim(ctx, id)
		if err == nil {
			return id, nil
		}
		if !pipeerrors.HasCode(err, pipeerrors.CodeConflict) {
			return "", pipeerrors.Wrap(err, pipeerrors.CodeInternal, "claim entity id")
		}
		lastErr = err
		if g.logger != nil {
			g.logger.DebugContext(ctx, "entity id collision, regenerating",
				"kind", kind, "id", id, "attempt", attempt+1)
		}
	}
	return "", pipeerrors.Wrap(lastErr, pipeerrors.CodeIDCollision, "exhausted id generation attempts")
}

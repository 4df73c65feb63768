package worker

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/docingest/internal/cache"
)

// Claimer decides whether this worker may process a queue item.
type Claimer interface {
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	Release(ctx context.Context, id uuid.UUID) error
}

// LocalClaimer grants every claim. It is correct for a single worker.
type LocalClaimer struct{}

func (LocalClaimer) Claim(ctx context.Context, id uuid.UUID) (bool, error) { return true, nil }
func (LocalClaimer) Release(ctx context.Context, id uuid.UUID) error       { return nil }

// RedisClaimer serializes claims across worker processes with a Redis lock
// per queue item.
type RedisClaimer struct {
	locker *cache.Locker
}

func NewRedisClaimer(locker *cache.Locker) *RedisClaimer {
	return &RedisClaimer{locker: locker}
}

func (c *RedisClaimer) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	return c.locker.Acquire(ctx, id.String())
}

func (c *RedisClaimer) Release(ctx context.Context, id uuid.UUID) error {
	_, err := c.locker.Release(ctx, id.String())
	return err
}

// Package idempotency guards consumer handlers against duplicate
// deliveries. The broker path is at-least-once: a message re-published for
// retry or a redelivered nack can reach a handler twice, so handlers with
// non-idempotent side effects run behind this guard.
package idempotency

import (
	"context"
	"time"

	"tally/internal/platform/redis"
	"tally/pkg/domainerrors"
)

// Guard claims a key in Redis before running the wrapped work. A key that is
// already claimed skips the work; failed work releases the claim so a retry
// can run again.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Guard {
	return &Guard{client: client, ttl: ttl}
}

// Once runs fn unless key was already processed within the TTL. A nil guard
// or unconfigured client runs fn unconditionally.
func (g *Guard) Once(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if g == nil || g.client == nil {
		return fn(ctx)
	}

	claimed, err := g.client.SetNX(ctx, "idem:"+key, 1, g.ttl).Result()
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeTransient, "claim idempotency key")
	}
	if !claimed {
		return nil
	}

	if err := fn(ctx); err != nil {
		// Release the claim so the rescheduled delivery is not skipped.
		_ = g.client.Del(ctx, "idem:"+key).Err()
		return err
	}
	return nil
}

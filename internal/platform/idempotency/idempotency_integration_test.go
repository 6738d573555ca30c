//go:build integration

package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/platform/idempotency"
	"tally/internal/platform/redis"
	"tally/pkg/testutil/containers"
)

func newGuard(t *testing.T) *idempotency.Guard {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rc := containers.NewRedisContainer(t)
	client, err := redis.New(context.Background(), rc.Addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return idempotency.New(client, time.Minute)
}

func TestOnceRunsFirstClaimAndSkipsDuplicates(t *testing.T) {
	g := newGuard(t)
	ctx := context.Background()

	runs := 0
	fn := func(context.Context) error { runs++; return nil }

	require.NoError(t, g.Once(ctx, "trace-1_invoice_voided", fn))
	require.NoError(t, g.Once(ctx, "trace-1_invoice_voided", fn))
	assert.Equal(t, 1, runs, "a claimed key skips the work")

	require.NoError(t, g.Once(ctx, "trace-2_invoice_voided", fn))
	assert.Equal(t, 2, runs, "each key claims independently")
}

func TestOnceReleasesClaimOnFailure(t *testing.T) {
	g := newGuard(t)
	ctx := context.Background()

	err := g.Once(ctx, "trace-3_invoice_voided", func(context.Context) error {
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	runs := 0
	fn := func(context.Context) error { runs++; return nil }

	require.NoError(t, g.Once(ctx, "trace-3_invoice_voided", fn))
	assert.Equal(t, 1, runs, "a failed claim is released so the rescheduled delivery runs")

	require.NoError(t, g.Once(ctx, "trace-3_invoice_voided", fn))
	assert.Equal(t, 1, runs, "success keeps the claim")
}

package idempotency_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/platform/idempotency"
)

func TestNilGuardRunsUnconditionally(t *testing.T) {
	var g *idempotency.Guard
	ctx := context.Background()

	runs := 0
	fn := func(context.Context) error { runs++; return nil }

	require.NoError(t, g.Once(ctx, "trace-1_invoice_voided", fn))
	require.NoError(t, g.Once(ctx, "trace-1_invoice_voided", fn))
	assert.Equal(t, 2, runs, "without redis configured every delivery runs")
}

func TestUnconfiguredGuardRunsUnconditionally(t *testing.T) {
	g := idempotency.New(nil, 0)

	runs := 0
	require.NoError(t, g.Once(context.Background(), "trace-1_invoice_voided", func(context.Context) error {
		runs++
		return nil
	}))
	assert.Equal(t, 1, runs)
}

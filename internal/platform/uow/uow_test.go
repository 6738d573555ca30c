package uow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/platform/uow"
	"tally/pkg/testutil"
)

func TestRunCommitsOnSuccess(t *testing.T) {
	f := testutil.NewFakeDB()
	u := uow.New(f.DB)

	err := u.Run(context.Background(), func(ctx context.Context) error {
		assert.NotNil(t, u.Tx())
		assert.Equal(t, 1, u.Depth())
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, f.Begins())
	assert.Equal(t, 1, f.Commits())
	assert.Zero(t, f.Rollbacks())
	assert.Nil(t, u.Tx())
	assert.Zero(t, u.Depth())
}

func TestRunRollsBackOnError(t *testing.T) {
	f := testutil.NewFakeDB()
	u := uow.New(f.DB)
	boom := errors.New("boom")

	err := u.Run(context.Background(), func(ctx context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, f.Begins())
	assert.Zero(t, f.Commits())
	assert.Equal(t, 1, f.Rollbacks())
}

func TestNestedRunSharesOneTransaction(t *testing.T) {
	f := testutil.NewFakeDB()
	u := uow.New(f.DB)

	err := u.Run(context.Background(), func(ctx context.Context) error {
		outer := u.Tx()
		return u.Run(ctx, func(ctx context.Context) error {
			assert.Same(t, outer, u.Tx(), "nested scope reuses the outer transaction")
			assert.Equal(t, 2, u.Depth())
			return nil
		})
	})

	require.NoError(t, err)
	assert.Equal(t, 1, f.Begins(), "only the outermost scope opens a transaction")
	assert.Equal(t, 1, f.Commits())
	assert.Zero(t, f.Rollbacks())
}

func TestNestedErrorPoisonsOuterScope(t *testing.T) {
	f := testutil.NewFakeDB()
	u := uow.New(f.DB)
	boom := errors.New("nested failure")

	err := u.Run(context.Background(), func(ctx context.Context) error {
		// Swallow the nested error: the unit must still roll back because
		// partial nested success is never preserved.
		_ = u.Run(ctx, func(ctx context.Context) error { return boom })
		return nil
	})

	require.NoError(t, err, "outer fn succeeded; poisoning is not an outer error")
	assert.Zero(t, f.Commits())
	assert.Equal(t, 1, f.Rollbacks())
}

func TestRunRollsBackOnPanic(t *testing.T) {
	f := testutil.NewFakeDB()
	u := uow.New(f.DB)

	assert.Panics(t, func() {
		_ = u.Run(context.Background(), func(ctx context.Context) error {
			panic("handler exploded")
		})
	})
	assert.Zero(t, f.Commits())
	assert.Equal(t, 1, f.Rollbacks())
	assert.Zero(t, u.Depth())
}

func TestScopeEndIsIdempotent(t *testing.T) {
	f := testutil.NewFakeDB()
	u := uow.New(f.DB)

	scope, err := u.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, scope.End(nil))
	require.NoError(t, scope.End(errors.New("late error")))

	assert.Equal(t, 1, f.Commits())
	assert.Zero(t, f.Rollbacks())
}

func TestFreshUnitAfterEnd(t *testing.T) {
	f := testutil.NewFakeDB()
	u := uow.New(f.DB)

	require.Error(t, u.Run(context.Background(), func(ctx context.Context) error {
		return errors.New("first use fails")
	}))

	// The same unit is reusable and starts clean.
	require.NoError(t, u.Run(context.Background(), func(ctx context.Context) error { return nil }))

	assert.Equal(t, 2, f.Begins())
	assert.Equal(t, 1, f.Commits())
	assert.Equal(t, 1, f.Rollbacks())
}

func TestContextCarry(t *testing.T) {
	ctx := context.Background()

	_, ok := uow.From(ctx)
	assert.False(t, ok)

	u := uow.New(testutil.NewFakeDB().DB)
	ctx = uow.WithUnitOfWork(ctx, u)
	got, ok := uow.From(ctx)
	require.True(t, ok)
	assert.Same(t, u, got)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRunLocker_Acquire(t *testing.T) {
	locker := NewInMemoryRunLocker()
	ctx := context.Background()

	t.Run("second acquire conflicts until release", func(t *testing.T) {
		release, err := locker.Acquire(ctx, "tenant-a", time.Minute)
		require.NoError(t, err)
		assert.True(t, locker.Held("tenant-a"))

		_, err = locker.Acquire(ctx, "tenant-a", time.Minute)
		assert.True(t, shared.IsConflict(err))

		require.NoError(t, release(ctx))
		assert.False(t, locker.Held("tenant-a"))

		release, err = locker.Acquire(ctx, "tenant-a", time.Minute)
		require.NoError(t, err)
		require.NoError(t, release(ctx))
	})

	t.Run("keys are independent", func(t *testing.T) {
		releaseA, err := locker.Acquire(ctx, "tenant-b", time.Minute)
		require.NoError(t, err)
		releaseC, err := locker.Acquire(ctx, "tenant-c", time.Minute)
		require.NoError(t, err)
		require.NoError(t, releaseA(ctx))
		require.NoError(t, releaseC(ctx))
	})
}

func TestInMemoryRunLocker_Expiry(t *testing.T) {
	locker := NewInMemoryRunLocker()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }
	ctx := context.Background()

	staleRelease, err := locker.Acquire(ctx, "tenant-a", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	assert.False(t, locker.Held("tenant-a"))

	freshRelease, err := locker.Acquire(ctx, "tenant-a", time.Minute)
	require.NoError(t, err)

	// releasing the expired lease must not free the new holder
	require.NoError(t, staleRelease(ctx))
	assert.True(t, locker.Held("tenant-a"))

	require.NoError(t, freshRelease(ctx))
	assert.False(t, locker.Held("tenant-a"))
}

package service

import (
	"context"
	"testing"
	"time"

	"booking-service/internal/clock"
	"booking-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newLockService(store *fakeStore, opts ...LockServiceOption) (*LockService, *fakeSink, *clock.Fixed) {
	sink := &fakeSink{}
	clk := clock.NewFixed(testNow)
	svc := NewLockService(store, store, sink, clk, opts...)
	return svc, sink, clk
}

func TestAcquire(t *testing.T) {
	ctx := context.Background()

	t.Run("locks an available unit", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		svc, sink, _ := newLockService(store)

		handle, err := svc.Acquire(ctx, 1, 10, 0, "showing at 3pm")
		require.NoError(t, err)
		assert.NotZero(t, handle.LockID)
		assert.Equal(t, testNow.Add(defaultLockTTL), handle.ExpiresAt)

		assert.Equal(t, models.UnitStatusLocked, store.unitStatus(1))
		lock := store.lock(handle.LockID)
		assert.True(t, lock.IsActive)
		assert.Equal(t, int64(10), lock.HolderID)
		assert.Equal(t, "showing at 3pm", lock.Notes.String)
		assert.Equal(t, []string{models.ActionLock}, sink.actions())
	})

	t.Run("honors TTL override", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		svc, _, _ := newLockService(store)

		handle, err := svc.Acquire(ctx, 1, 10, 10*time.Minute, "")
		require.NoError(t, err)
		assert.Equal(t, testNow.Add(10*time.Minute), handle.ExpiresAt)
	})

	t.Run("unit not found", func(t *testing.T) {
		store := newFakeStore()
		svc, sink, _ := newLockService(store)

		_, err := svc.Acquire(ctx, 99, 10, 0, "")
		assert.ErrorIs(t, err, models.ErrUnitNotFound)
		assert.Empty(t, sink.actions())
	})

	t.Run("unit already locked", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		svc, _, _ := newLockService(store)

		_, err := svc.Acquire(ctx, 1, 10, 0, "")
		require.NoError(t, err)

		_, err = svc.Acquire(ctx, 1, 11, 0, "")
		assert.ErrorIs(t, err, models.ErrUnitNotAvailable)
		assert.Equal(t, 1, store.activeLockCount(1))
	})

	t.Run("quota exceeded creates no lock", func(t *testing.T) {
		store := newFakeStore(availableUnit(1), availableUnit(2), availableUnit(3), availableUnit(4))
		store.units[2].UnitNumber = "A-102"
		svc, _, _ := newLockService(store, WithLockLimit(3))

		for _, unitID := range []int64{1, 2, 3} {
			_, err := svc.Acquire(ctx, unitID, 10, 0, "")
			require.NoError(t, err)
		}

		_, err := svc.Acquire(ctx, 4, 10, 0, "")
		assert.ErrorIs(t, err, models.ErrLockQuotaExceeded)
		assert.Equal(t, models.UnitStatusAvailable, store.unitStatus(4))
		assert.Equal(t, 0, store.activeLockCount(4))

		// A different holder is unaffected.
		_, err = svc.Acquire(ctx, 4, 11, 0, "")
		assert.NoError(t, err)
	})

	t.Run("re-evaluates after a status conflict", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		store.failTransitions = 1
		svc, _, _ := newLockService(store)

		handle, err := svc.Acquire(ctx, 1, 10, 0, "")
		require.NoError(t, err)
		assert.NotZero(t, handle.LockID)
	})

	t.Run("gives up with contention after repeated ledger rejections", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		store.failCreateLock = true
		svc, _, _ := newLockService(store)

		_, err := svc.Acquire(ctx, 1, 10, 0, "")
		assert.ErrorIs(t, err, models.ErrContention)
		// The failed acquire must not leave the unit stuck in Locked.
		assert.Equal(t, models.UnitStatusAvailable, store.unitStatus(1))
	})
}

func TestRelease(t *testing.T) {
	ctx := context.Background()

	acquire := func(t *testing.T, svc *LockService, unitID, holderID int64) int64 {
		t.Helper()
		handle, err := svc.Acquire(ctx, unitID, holderID, 0, "")
		require.NoError(t, err)
		return handle.LockID
	}

	t.Run("holder releases own lock", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		svc, sink, _ := newLockService(store)
		lockID := acquire(t, svc, 1, 10)

		err := svc.Release(ctx, lockID, 10, models.RoleAgent)
		require.NoError(t, err)

		assert.Equal(t, models.UnitStatusAvailable, store.unitStatus(1))
		lock := store.lock(lockID)
		assert.False(t, lock.IsActive)
		assert.True(t, lock.ReleasedAt.Valid)
		assert.Equal(t, []string{models.ActionLock, models.ActionUnlock}, sink.actions())
	})

	t.Run("admin releases another holder's lock", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		svc, _, _ := newLockService(store)
		lockID := acquire(t, svc, 1, 10)

		err := svc.Release(ctx, lockID, 20, models.RoleAdmin)
		assert.NoError(t, err)
	})

	t.Run("other agent is forbidden", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		svc, _, _ := newLockService(store)
		lockID := acquire(t, svc, 1, 10)

		err := svc.Release(ctx, lockID, 20, models.RoleAgent)
		assert.ErrorIs(t, err, models.ErrForbidden)
		assert.Equal(t, models.UnitStatusLocked, store.unitStatus(1))
	})

	t.Run("lock not found", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		svc, _, _ := newLockService(store)

		err := svc.Release(ctx, 999, 10, models.RoleAgent)
		assert.ErrorIs(t, err, models.ErrLockNotFound)
	})

	t.Run("already released", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		svc, _, _ := newLockService(store)
		lockID := acquire(t, svc, 1, 10)

		require.NoError(t, svc.Release(ctx, lockID, 10, models.RoleAgent))
		err := svc.Release(ctx, lockID, 10, models.RoleAgent)
		assert.ErrorIs(t, err, models.ErrLockAlreadyInactive)
	})

	t.Run("reserved unit stays reserved after release", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		svc, _, _ := newLockService(store)
		lockID := acquire(t, svc, 1, 10)

		// Confirmation moved the unit to Reserved while the lock was
		// still active; releasing the lock must not touch it.
		store.units[1].Status = models.UnitStatusReserved

		err := svc.Release(ctx, lockID, 10, models.RoleAgent)
		require.NoError(t, err)
		assert.Equal(t, models.UnitStatusReserved, store.unitStatus(1))
		assert.False(t, store.lock(lockID).IsActive)
	})
}

func TestReleaseExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("reverts unit and emits auto-unlock", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		svc, sink, clk := newLockService(store, WithLockTTL(30*time.Minute))

		handle, err := svc.Acquire(ctx, 1, 10, 0, "")
		require.NoError(t, err)
		clk.Advance(31 * time.Minute)

		lock := store.lock(handle.LockID)
		require.NoError(t, svc.ReleaseExpired(ctx, lock))

		assert.Equal(t, models.UnitStatusAvailable, store.unitStatus(1))
		assert.False(t, store.lock(handle.LockID).IsActive)
		assert.Equal(t, []string{models.ActionLock, models.ActionAutoUnlock}, sink.actions())
	})

	t.Run("losing the race to an explicit release is a no-op", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		svc, sink, _ := newLockService(store)

		handle, err := svc.Acquire(ctx, 1, 10, 0, "")
		require.NoError(t, err)
		lock := store.lock(handle.LockID)

		require.NoError(t, svc.Release(ctx, handle.LockID, 10, models.RoleAgent))

		// The sweeper selected the lock before the user released it.
		require.NoError(t, svc.ReleaseExpired(ctx, lock))

		assert.Equal(t, models.UnitStatusAvailable, store.unitStatus(1))
		assert.NotContains(t, sink.actions(), models.ActionAutoUnlock)
	})
}

func TestQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("no active lock", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		svc, _, _ := newLockService(store)

		snapshot, err := svc.Query(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, snapshot)
	})

	t.Run("unit not found", func(t *testing.T) {
		store := newFakeStore()
		svc, _, _ := newLockService(store)

		_, err := svc.Query(ctx, 1)
		assert.ErrorIs(t, err, models.ErrUnitNotFound)
	})

	t.Run("reports remaining TTL", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		svc, _, clk := newLockService(store, WithLockTTL(30*time.Minute))

		handle, err := svc.Acquire(ctx, 1, 10, 0, "")
		require.NoError(t, err)
		clk.Advance(12 * time.Minute)

		snapshot, err := svc.Query(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		assert.Equal(t, handle.LockID, snapshot.LockID)
		assert.Equal(t, int64(10), snapshot.HolderID)
		assert.Equal(t, 18*time.Minute, snapshot.Remaining)
	})

	t.Run("clamps remaining TTL at zero past expiry", func(t *testing.T) {
		store := newFakeStore(availableUnit(1))
		svc, _, clk := newLockService(store, WithLockTTL(30*time.Minute))

		_, err := svc.Acquire(ctx, 1, 10, 0, "")
		require.NoError(t, err)
		clk.Advance(45 * time.Minute)

		snapshot, err := svc.Query(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		assert.Equal(t, time.Duration(0), snapshot.Remaining)
	})
}

// The canonical two-agent handoff: B cannot lock while A holds the
// unit, and can immediately after A releases.
func TestLockHandoffBetweenAgents(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(availableUnit(1))
	svc, _, _ := newLockService(store)

	handleA, err := svc.Acquire(ctx, 1, 10, 0, "")
	require.NoError(t, err)

	_, err = svc.Acquire(ctx, 1, 11, 0, "")
	assert.ErrorIs(t, err, models.ErrUnitNotAvailable)

	require.NoError(t, svc.Release(ctx, handleA.LockID, 10, models.RoleAgent))
	assert.Equal(t, models.UnitStatusAvailable, store.unitStatus(1))

	handleB, err := svc.Acquire(ctx, 1, 11, 0, "")
	require.NoError(t, err)
	assert.NotEqual(t, handleA.LockID, handleB.LockID)
}

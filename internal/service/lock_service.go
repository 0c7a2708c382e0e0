package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking-service/internal/clock"
	"booking-service/internal/models"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

// maxStatusAttempts bounds the read-decide-compare-and-set loop. When a
// unit's status keeps moving under an operation, the operation gives up
// with ErrContention instead of spinning.
const maxStatusAttempts = 3

const (
	defaultLockTTL   = 30 * time.Minute
	defaultLockLimit = 3
)

// UnitStore is the single source of truth for unit status. Every status
// change goes through the compare-and-set primitive.
type UnitStore interface {
	GetUnit(ctx context.Context, id int64) (*models.Unit, error)
	TransitionUnitStatus(ctx context.Context, unitID int64, expected, next models.UnitStatus) error
}

// LockLedger is the durable record of locks. Locks are appended and
// deactivated, never deleted.
type LockLedger interface {
	CreateLock(ctx context.Context, lock *models.Lock) error
	GetLockByID(ctx context.Context, id int64) (*models.Lock, error)
	GetActiveLockByUnit(ctx context.Context, unitID int64) (*models.Lock, error)
	CountActiveLocksByHolder(ctx context.Context, holderID int64) (int, error)
	DeactivateLock(ctx context.Context, lockID int64, releasedAt time.Time) (bool, error)
	HasOtherActiveLocks(ctx context.Context, unitID, excludeLockID int64) (bool, error)
}

// ActivitySink receives one structured event per state transition.
// Best-effort: failures are logged and counted, never returned.
type ActivitySink interface {
	Publish(ctx context.Context, event *models.ActivityEvent) error
}

// LockService is the concurrency-control surface for unit locks.
type LockService struct {
	units    UnitStore
	locks    LockLedger
	activity ActivitySink
	clock    clock.Clock
	logger   *zap.Logger

	lockTTL   time.Duration
	lockLimit int
}

// NewLockService creates a new lock service
func NewLockService(units UnitStore, locks LockLedger, activity ActivitySink, clk clock.Clock, opts ...LockServiceOption) *LockService {
	svc := &LockService{
		units:     units,
		locks:     locks,
		activity:  activity,
		clock:     clk,
		logger:    util.GetLogger(),
		lockTTL:   defaultLockTTL,
		lockLimit: defaultLockLimit,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type LockServiceOption func(*LockService)

// WithLockTTL overrides the default TTL for new locks.
func WithLockTTL(d time.Duration) LockServiceOption {
	return func(s *LockService) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

// WithLockLimit overrides the per-holder active-lock quota.
func WithLockLimit(n int) LockServiceOption {
	return func(s *LockService) {
		if n > 0 {
			s.lockLimit = n
		}
	}
}

// LockHandle is returned to the caller on a successful acquire.
type LockHandle struct {
	LockID    int64     `json:"lock_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Acquire claims a unit for holderID. The unit must be available and
// the holder under quota. The serialization point is the status
// compare-and-set: of two racing acquires exactly one moves the unit
// Available→Locked; the ledger's uniqueness constraint backstops the
// one-active-lock invariant. ttlOverride <= 0 means the configured TTL.
func (s *LockService) Acquire(ctx context.Context, unitID, holderID int64, ttlOverride time.Duration, notes string) (*LockHandle, error) {
	ctx, span := util.StartSpan(ctx, "LockService.Acquire")
	defer span.End()

	ttl := s.lockTTL
	if ttlOverride > 0 {
		ttl = ttlOverride
	}

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		unit, err := s.units.GetUnit(ctx, unitID)
		if err != nil {
			return nil, err
		}

		if unit.Status != models.UnitStatusAvailable {
			util.LockAcquireFailedTotal.WithLabelValues("unit_not_available").Inc()
			return nil, models.ErrUnitNotAvailable
		}

		count, err := s.locks.CountActiveLocksByHolder(ctx, holderID)
		if err != nil {
			return nil, fmt.Errorf("failed to count active locks: %w", err)
		}
		if count >= s.lockLimit {
			util.LockAcquireFailedTotal.WithLabelValues("quota_exceeded").Inc()
			return nil, models.ErrLockQuotaExceeded
		}

		now := s.clock.Now()
		if err := s.units.TransitionUnitStatus(ctx, unitID, models.UnitStatusAvailable, models.UnitStatusLocked); err != nil {
			if errors.Is(err, models.ErrStatusConflict) {
				continue
			}
			return nil, fmt.Errorf("failed to transition unit status: %w", err)
		}

		lock := &models.Lock{
			UnitID:    unitID,
			HolderID:  holderID,
			LockedAt:  now,
			ExpiresAt: now.Add(ttl),
			IsActive:  true,
			Notes:     nullString(notes),
		}

		if err := s.locks.CreateLock(ctx, lock); err != nil {
			s.revertAcquire(ctx, unitID)
			if errors.Is(err, models.ErrDuplicateActiveLock) {
				// The ledger caught an active lock the status read
				// missed; re-evaluate from scratch.
				continue
			}
			return nil, fmt.Errorf("failed to create lock: %w", err)
		}

		util.LocksAcquiredTotal.Inc()
		s.logger.Info("Unit locked",
			zap.Int64("unit_id", unitID),
			zap.Int64("holder_id", holderID),
			zap.Int64("lock_id", lock.ID),
			zap.Time("expires_at", lock.ExpiresAt))

		s.emitActivity(ctx, &models.ActivityEvent{
			ActorID:     holderID,
			Action:      models.ActionLock,
			EntityType:  models.EntityTypeUnit,
			EntityID:    unitID,
			Description: fmt.Sprintf("Locked unit %d until %s", unitID, lock.ExpiresAt.Format(time.RFC3339)),
		})

		return &LockHandle{LockID: lock.ID, ExpiresAt: lock.ExpiresAt}, nil
	}

	util.LockContentionTotal.Inc()
	return nil, models.ErrContention
}

// revertAcquire undoes the Available→Locked transition after a failed
// lock insert. Best effort: if the status moved again there is nothing
// to undo.
func (s *LockService) revertAcquire(ctx context.Context, unitID int64) {
	err := s.units.TransitionUnitStatus(ctx, unitID, models.UnitStatusLocked, models.UnitStatusAvailable)
	if err != nil && !errors.Is(err, models.ErrStatusConflict) {
		s.logger.Error("Failed to revert unit status after lock insert failure",
			zap.Int64("unit_id", unitID),
			zap.Error(err))
	}
}

// Release deactivates a lock on behalf of its holder or an
// administrative caller.
func (s *LockService) Release(ctx context.Context, lockID, callerID int64, callerRole string) error {
	ctx, span := util.StartSpan(ctx, "LockService.Release")
	defer span.End()

	lock, err := s.locks.GetLockByID(ctx, lockID)
	if err != nil {
		return err
	}
	if !lock.IsActive {
		return models.ErrLockAlreadyInactive
	}

	if lock.HolderID != callerID && !models.IsAdministrative(callerRole) {
		return models.ErrForbidden
	}

	released, err := s.locks.DeactivateLock(ctx, lockID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate lock: %w", err)
	}
	if !released {
		// The sweeper got there first.
		return models.ErrLockAlreadyInactive
	}

	if err := s.revertUnitIfUnlocked(ctx, lock); err != nil {
		return err
	}

	util.LocksReleasedTotal.WithLabelValues("user").Inc()
	s.logger.Info("Unit unlocked",
		zap.Int64("unit_id", lock.UnitID),
		zap.Int64("lock_id", lockID),
		zap.Int64("caller_id", callerID))

	s.emitActivity(ctx, &models.ActivityEvent{
		ActorID:     callerID,
		Action:      models.ActionUnlock,
		EntityType:  models.EntityTypeUnit,
		EntityID:    lock.UnitID,
		Description: fmt.Sprintf("Unlocked unit %d", lock.UnitID),
	})

	return nil
}

// ReleaseExpired deactivates an expired lock on behalf of the sweeper.
// Losing the race against an explicit release is a silent no-op.
func (s *LockService) ReleaseExpired(ctx context.Context, lock models.Lock) error {
	released, err := s.locks.DeactivateLock(ctx, lock.ID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate expired lock %d: %w", lock.ID, err)
	}
	if !released {
		return nil
	}

	if err := s.revertUnitIfUnlocked(ctx, &lock); err != nil {
		return err
	}

	util.LocksReleasedTotal.WithLabelValues("sweep").Inc()
	s.logger.Info("Expired lock auto-released",
		zap.Int64("unit_id", lock.UnitID),
		zap.Int64("lock_id", lock.ID),
		zap.Int64("holder_id", lock.HolderID),
		zap.Time("expired_at", lock.ExpiresAt))

	s.emitActivity(ctx, &models.ActivityEvent{
		ActorID:     lock.HolderID,
		Action:      models.ActionAutoUnlock,
		EntityType:  models.EntityTypeUnit,
		EntityID:    lock.UnitID,
		Description: fmt.Sprintf("Auto-unlocked unit %d after lock expiry", lock.UnitID),
	})

	return nil
}

// revertUnitIfUnlocked re-derives the unit status after a lock goes
// inactive. The unit reverts to Available only while it is still
// Locked and no other active lock remains; a Reserved or Sold unit is
// left alone.
func (s *LockService) revertUnitIfUnlocked(ctx context.Context, lock *models.Lock) error {
	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		unit, err := s.units.GetUnit(ctx, lock.UnitID)
		if err != nil {
			return err
		}
		if unit.Status != models.UnitStatusLocked {
			return nil
		}

		other, err := s.locks.HasOtherActiveLocks(ctx, lock.UnitID, lock.ID)
		if err != nil {
			return fmt.Errorf("failed to check remaining locks: %w", err)
		}
		if other {
			// Should be impossible under the uniqueness constraint.
			// Leave the status as-is rather than corrupt it.
			s.logger.Warn("Unit has multiple active locks",
				zap.Int64("unit_id", lock.UnitID),
				zap.Int64("released_lock_id", lock.ID))
			return nil
		}

		err = s.units.TransitionUnitStatus(ctx, lock.UnitID, models.UnitStatusLocked, models.UnitStatusAvailable)
		if err == nil {
			return nil
		}
		if !errors.Is(err, models.ErrStatusConflict) {
			return fmt.Errorf("failed to revert unit status: %w", err)
		}
	}

	util.LockContentionTotal.Inc()
	return models.ErrContention
}

// LockSnapshot is the read-only view of a unit's active lock.
type LockSnapshot struct {
	LockID    int64         `json:"lock_id"`
	UnitID    int64         `json:"unit_id"`
	HolderID  int64         `json:"holder_id"`
	ExpiresAt time.Time     `json:"expires_at"`
	Remaining time.Duration `json:"remaining_ttl"`
}

// Query returns the unit's current active lock, or nil when the unit
// is unlocked. Never mutates.
func (s *LockService) Query(ctx context.Context, unitID int64) (*LockSnapshot, error) {
	if _, err := s.units.GetUnit(ctx, unitID); err != nil {
		return nil, err
	}

	lock, err := s.locks.GetActiveLockByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, nil
	}

	remaining := lock.ExpiresAt.Sub(s.clock.Now())
	if remaining < 0 {
		remaining = 0
	}

	return &LockSnapshot{
		LockID:    lock.ID,
		UnitID:    lock.UnitID,
		HolderID:  lock.HolderID,
		ExpiresAt: lock.ExpiresAt,
		Remaining: remaining,
	}, nil
}

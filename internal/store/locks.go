package store

import (
	"context"
	"database/sql"
	"time"

	"booking-service/internal/models"
)

// CreateLock appends a lock to the ledger. The partial unique index on
// locks(unit_id) WHERE is_active is the authoritative guard against two
// concurrent active locks; a violation surfaces as ErrDuplicateActiveLock.
func (s *Store) CreateLock(ctx context.Context, lock *models.Lock) error {
	query := `
		INSERT INTO locks (unit_id, holder_id, locked_at, expires_at, is_active, notes)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		RETURNING id`

	err := s.db.GetContext(ctx, &lock.ID, query,
		lock.UnitID, lock.HolderID, lock.LockedAt, lock.ExpiresAt, lock.Notes)
	if isUniqueViolation(err) {
		return models.ErrDuplicateActiveLock
	}
	return err
}

// GetLockByID retrieves a lock by ID
func (s *Store) GetLockByID(ctx context.Context, id int64) (*models.Lock, error) {
	var lock models.Lock
	err := s.db.GetContext(ctx, &lock, "SELECT * FROM locks WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrLockNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

// GetActiveLockByUnit returns the unit's active lock, or nil when none.
func (s *Store) GetActiveLockByUnit(ctx context.Context, unitID int64) (*models.Lock, error) {
	var lock models.Lock
	err := s.db.GetContext(ctx, &lock,
		"SELECT * FROM locks WHERE unit_id = $1 AND is_active", unitID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

// CountActiveLocksByHolder returns how many active locks a holder owns.
func (s *Store) CountActiveLocksByHolder(ctx context.Context, holderID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM locks WHERE holder_id = $1 AND is_active", holderID)
	return count, err
}

// DeactivateLock flips a lock inactive and stamps released_at. The
// WHERE is_active clause makes this a compare-and-set: when an explicit
// release races the sweeper, exactly one caller sees true and the loser
// sees false with no rows touched.
func (s *Store) DeactivateLock(ctx context.Context, lockID int64, releasedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE locks SET is_active = FALSE, released_at = $1 WHERE id = $2 AND is_active",
		releasedAt, lockID)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// HasOtherActiveLocks reports whether the unit carries any active lock
// besides the given one. Normally unreachable given the uniqueness
// constraint, but release re-derives status through it rather than
// assuming.
func (s *Store) HasOtherActiveLocks(ctx context.Context, unitID, excludeLockID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM locks WHERE unit_id = $1 AND is_active AND id != $2)",
		unitID, excludeLockID)
	return exists, err
}

// ListExpiredLocks returns active locks whose expiry has passed, oldest
// first, capped at limit per sweep cycle.
func (s *Store) ListExpiredLocks(ctx context.Context, now time.Time, limit int) ([]models.Lock, error) {
	var locks []models.Lock
	err := s.db.SelectContext(ctx, &locks,
		"SELECT * FROM locks WHERE is_active AND expires_at <= $1 ORDER BY expires_at LIMIT $2",
		now, limit)
	return locks, err
}

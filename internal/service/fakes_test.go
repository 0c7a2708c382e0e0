package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"booking-service/internal/models"
)

// fakeStore is an in-memory stand-in for the Postgres store with the
// same compare-and-set semantics, safe for concurrent use.
type fakeStore struct {
	mu           sync.Mutex
	units        map[int64]*models.Unit
	locks        map[int64]*models.Lock
	reservations map[int64]*models.Reservation
	nextID       int64

	// failTransitions makes the next n TransitionUnitStatus calls
	// report a conflict regardless of state.
	failTransitions int
	// failCreateLock makes CreateLock report a duplicate active lock.
	failCreateLock bool
}

func newFakeStore(units ...*models.Unit) *fakeStore {
	f := &fakeStore{
		units:        make(map[int64]*models.Unit),
		locks:        make(map[int64]*models.Lock),
		reservations: make(map[int64]*models.Reservation),
		nextID:       100,
	}
	for _, u := range units {
		f.units[u.ID] = u
	}
	return f
}

func availableUnit(id int64) *models.Unit {
	return &models.Unit{ID: id, UnitNumber: "A-101", Status: models.UnitStatusAvailable}
}

func (f *fakeStore) GetUnit(_ context.Context, id int64) (*models.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unit, ok := f.units[id]
	if !ok {
		return nil, models.ErrUnitNotFound
	}
	copied := *unit
	return &copied, nil
}

func (f *fakeStore) TransitionUnitStatus(_ context.Context, unitID int64, expected, next models.UnitStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTransitions > 0 {
		f.failTransitions--
		return models.ErrStatusConflict
	}
	unit, ok := f.units[unitID]
	if !ok || unit.Status != expected {
		return models.ErrStatusConflict
	}
	unit.Status = next
	unit.Version++
	return nil
}

func (f *fakeStore) CreateLock(_ context.Context, lock *models.Lock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateLock {
		return models.ErrDuplicateActiveLock
	}
	for _, l := range f.locks {
		if l.UnitID == lock.UnitID && l.IsActive {
			return models.ErrDuplicateActiveLock
		}
	}
	f.nextID++
	lock.ID = f.nextID
	copied := *lock
	f.locks[lock.ID] = &copied
	return nil
}

func (f *fakeStore) GetLockByID(_ context.Context, id int64) (*models.Lock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lock, ok := f.locks[id]
	if !ok {
		return nil, models.ErrLockNotFound
	}
	copied := *lock
	return &copied, nil
}

func (f *fakeStore) GetActiveLockByUnit(_ context.Context, unitID int64) (*models.Lock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.locks {
		if l.UnitID == unitID && l.IsActive {
			copied := *l
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CountActiveLocksByHolder(_ context.Context, holderID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, l := range f.locks {
		if l.HolderID == holderID && l.IsActive {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) DeactivateLock(_ context.Context, lockID int64, releasedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lock, ok := f.locks[lockID]
	if !ok || !lock.IsActive {
		return false, nil
	}
	lock.IsActive = false
	lock.ReleasedAt = sql.NullTime{Time: releasedAt, Valid: true}
	return true, nil
}

func (f *fakeStore) HasOtherActiveLocks(_ context.Context, unitID, excludeLockID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.locks {
		if l.UnitID == unitID && l.IsActive && l.ID != excludeLockID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateReservation(_ context.Context, r *models.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = f.nextID
	copied := *r
	f.reservations[r.ID] = &copied
	return nil
}

func (f *fakeStore) GetReservationByID(_ context.Context, id int64) (*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return nil, models.ErrReservationNotFound
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) TransitionReservationStatus(_ context.Context, id int64, expected, next models.ReservationStatus, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || r.Status != expected {
		return false, nil
	}
	r.Status = next
	stamp := sql.NullTime{Time: at, Valid: true}
	switch next {
	case models.ReservationStatusConfirmed:
		r.ConfirmedAt = stamp
	case models.ReservationStatusCancelled:
		r.CancelledAt = stamp
	case models.ReservationStatusCompleted:
		r.CompletedAt = stamp
	}
	return true, nil
}

func (f *fakeStore) unitStatus(id int64) models.UnitStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.units[id].Status
}

func (f *fakeStore) lock(id int64) models.Lock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.locks[id]
}

func (f *fakeStore) activeLockCount(unitID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, l := range f.locks {
		if l.UnitID == unitID && l.IsActive {
			count++
		}
	}
	return count
}

// fakeSink records published activity events.
type fakeSink struct {
	mu     sync.Mutex
	events []models.ActivityEvent
	err    error
}

func (f *fakeSink) Publish(_ context.Context, event *models.ActivityEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeSink) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	actions := make([]string, len(f.events))
	for i, e := range f.events {
		actions[i] = e.Action
	}
	return actions
}

// fakePricing returns a fixed price per unit.
type fakePricing struct {
	prices map[int64]int64
	err    error
}

func (f *fakePricing) PriceForUnit(_ context.Context, unitID int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.prices[unitID], nil
}

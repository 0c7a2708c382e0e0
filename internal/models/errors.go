package models

import "errors"

// Typed failures returned by the lock/reservation services. The API
// boundary maps each to a response; none carries internal store detail.
var (
	ErrUnitNotFound        = errors.New("unit not found")
	ErrLockNotFound        = errors.New("lock not found")
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrUnitNotAvailable is returned when a unit's current status does
	// not permit the requested transition.
	ErrUnitNotAvailable = errors.New("unit status does not permit this operation")

	// ErrLockQuotaExceeded is returned when a holder is already at the
	// configured active-lock limit.
	ErrLockQuotaExceeded = errors.New("active lock limit reached")

	// ErrLockAlreadyInactive is returned when releasing a lock that has
	// already been released or swept.
	ErrLockAlreadyInactive = errors.New("lock is no longer active")

	// ErrReservationNotPending is returned when confirming a reservation
	// that is not in pending status.
	ErrReservationNotPending = errors.New("reservation is not pending")

	// ErrReservationNotConfirmed is returned when completing a
	// reservation that has not been confirmed.
	ErrReservationNotConfirmed = errors.New("reservation is not confirmed")

	// ErrReservationTerminal is returned when cancelling or completing a
	// reservation that is already cancelled or completed.
	ErrReservationTerminal = errors.New("reservation is in a terminal status")

	ErrForbidden = errors.New("caller is not allowed to perform this operation")

	// ErrContention is returned when the bounded re-read/compare-and-set
	// loop exhausts its attempts without converging.
	ErrContention = errors.New("operation aborted after repeated status conflicts")
)

// Store-level sentinels. Services translate these into the typed
// failures above; they never cross the API boundary directly.
var (
	// ErrStatusConflict reports a compare-and-set whose expected status
	// no longer matched. Nothing was mutated.
	ErrStatusConflict = errors.New("unit status changed concurrently")

	// ErrDuplicateActiveLock reports the partial unique index rejecting
	// a second active lock on the same unit.
	ErrDuplicateActiveLock = errors.New("unit already has an active lock")
)

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

// ReservationLedger is the durable record of reservations.
type ReservationLedger interface {
	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservationByID(ctx context.Context, id int64) (*models.Reservation, error)
	TransitionReservationStatus(ctx context.Context, id int64, expected, next models.ReservationStatus, at time.Time) (bool, error)
}

// PricingLookup supplies the displayed price captured onto a new
// reservation. How the price is computed lives outside this service.
type PricingLookup interface {
	PriceForUnit(ctx context.Context, unitID int64) (int64, error)
}

// ReservationService governs the reservation side of the claim
// pipeline: Reserve, Confirm, and the administrative Cancel/Complete
// transitions.
type ReservationService struct {
	units        UnitStore
	reservations ReservationLedger
	locks        LockLedger
	pricing      PricingLookup
	activity     ActivitySink
	clock        clock.Clock
	logger       *zap.Logger
}

// NewReservationService creates a new reservation service
func NewReservationService(
	units UnitStore,
	reservations ReservationLedger,
	locks LockLedger,
	pricing PricingLookup,
	activity ActivitySink,
	clk clock.Clock,
) *ReservationService {
	return &ReservationService{
		units:        units,
		reservations: reservations,
		locks:        locks,
		pricing:      pricing,
		activity:     activity,
		clock:        clk,
		logger:       util.GetLogger(),
	}
}

// ReserveInput carries the customer details captured on a reservation.
type ReserveInput struct {
	UnitID        int64
	HolderID      int64
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Notes         string
}

// ReservationHandle is returned to the caller on a successful reserve.
type ReservationHandle struct {
	ReservationID int64 `json:"reservation_id"`
	Price         int64 `json:"price"`
}

// Reserve creates a pending reservation on an available or locked
// unit. A lock held by another agent does not block reserving; the
// unit keeps its current status until the reservation is confirmed.
// The price is frozen on the reservation at creation time.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (*ReservationHandle, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Reserve")
	defer span.End()

	unit, err := s.units.GetUnit(ctx, in.UnitID)
	if err != nil {
		return nil, err
	}

	if unit.Status != models.UnitStatusAvailable && unit.Status != models.UnitStatusLocked {
		return nil, models.ErrUnitNotAvailable
	}

	price, err := s.pricing.PriceForUnit(ctx, in.UnitID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up unit price: %w", err)
	}

	reservation := &models.Reservation{
		UnitID:        in.UnitID,
		HolderID:      in.HolderID,
		Status:        models.ReservationStatusPending,
		ReservedAt:    s.clock.Now(),
		Price:         price,
		CustomerName:  in.CustomerName,
		CustomerPhone: nullString(in.CustomerPhone),
		CustomerEmail: nullString(in.CustomerEmail),
		Notes:         nullString(in.Notes),
	}

	if err := s.reservations.CreateReservation(ctx, reservation); err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	util.ReservationsCreatedTotal.Inc()
	s.logger.Info("Reservation created",
		zap.Int64("reservation_id", reservation.ID),
		zap.Int64("unit_id", in.UnitID),
		zap.Int64("holder_id", in.HolderID),
		zap.Int64("price", price))

	s.emitActivity(ctx, &models.ActivityEvent{
		ActorID:     in.HolderID,
		Action:      models.ActionReserve,
		EntityType:  models.EntityTypeUnit,
		EntityID:    in.UnitID,
		Description: fmt.Sprintf("Reserved unit %d for %s", in.UnitID, in.CustomerName),
	})

	return &ReservationHandle{ReservationID: reservation.ID, Price: price}, nil
}

// Confirm moves a pending reservation to confirmed and the unit to
// Reserved. Administrative callers only. Reserved takes precedence over
// any lock still active on the unit; releasing such a lock afterwards
// will not revert the unit to Available.
func (s *ReservationService) Confirm(ctx context.Context, reservationID, callerID int64, callerRole string) error {
	ctx, span := util.StartSpan(ctx, "ReservationService.Confirm")
	defer span.End()

	if !models.IsAdministrative(callerRole) {
		return models.ErrForbidden
	}

	reservation, err := s.reservations.GetReservationByID(ctx, reservationID)
	if err != nil {
		return err
	}
	if reservation.Status != models.ReservationStatusPending {
		return models.ErrReservationNotPending
	}

	moved, err := s.reservations.TransitionReservationStatus(ctx, reservationID,
		models.ReservationStatusPending, models.ReservationStatusConfirmed, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to confirm reservation: %w", err)
	}
	if !moved {
		// A concurrent confirm or cancel won.
		return models.ErrReservationNotPending
	}

	if err := s.forceUnitStatus(ctx, reservation.UnitID, models.UnitStatusReserved); err != nil {
		return err
	}

	util.ReservationsConfirmedTotal.Inc()
	s.logger.Info("Reservation confirmed",
		zap.Int64("reservation_id", reservationID),
		zap.Int64("unit_id", reservation.UnitID),
		zap.Int64("caller_id", callerID))

	s.emitActivity(ctx, &models.ActivityEvent{
		ActorID:     callerID,
		Action:      models.ActionConfirm,
		EntityType:  models.EntityTypeReservation,
		EntityID:    reservationID,
		Description: fmt.Sprintf("Confirmed reservation %d on unit %d", reservationID, reservation.UnitID),
	})

	return nil
}

// Cancel voids a pending or confirmed reservation. The holder may
// cancel their own; administrative callers may cancel any. Cancelling
// a confirmed reservation re-derives the unit status from the ledger:
// back to Locked while an active lock remains, otherwise Available.
func (s *ReservationService) Cancel(ctx context.Context, reservationID, callerID int64, callerRole string) error {
	ctx, span := util.StartSpan(ctx, "ReservationService.Cancel")
	defer span.End()

	reservation, err := s.reservations.GetReservationByID(ctx, reservationID)
	if err != nil {
		return err
	}

	if reservation.HolderID != callerID && !models.IsAdministrative(callerRole) {
		return models.ErrForbidden
	}

	switch reservation.Status {
	case models.ReservationStatusPending, models.ReservationStatusConfirmed:
	default:
		return models.ErrReservationTerminal
	}

	moved, err := s.reservations.TransitionReservationStatus(ctx, reservationID,
		reservation.Status, models.ReservationStatusCancelled, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to cancel reservation: %w", err)
	}
	if !moved {
		return models.ErrReservationTerminal
	}

	if reservation.Status == models.ReservationStatusConfirmed {
		if err := s.releaseReservedUnit(ctx, reservation.UnitID); err != nil {
			return err
		}
	}

	util.ReservationsClosedTotal.WithLabelValues("cancelled").Inc()
	s.logger.Info("Reservation cancelled",
		zap.Int64("reservation_id", reservationID),
		zap.Int64("unit_id", reservation.UnitID),
		zap.Int64("caller_id", callerID))

	s.emitActivity(ctx, &models.ActivityEvent{
		ActorID:     callerID,
		Action:      models.ActionCancel,
		EntityType:  models.EntityTypeReservation,
		EntityID:    reservationID,
		Description: fmt.Sprintf("Cancelled reservation %d on unit %d", reservationID, reservation.UnitID),
	})

	return nil
}

// Complete closes a confirmed reservation as a sale and marks the unit
// Sold. Administrative callers only. Terminal.
func (s *ReservationService) Complete(ctx context.Context, reservationID, callerID int64, callerRole string) error {
	ctx, span := util.StartSpan(ctx, "ReservationService.Complete")
	defer span.End()

	if !models.IsAdministrative(callerRole) {
		return models.ErrForbidden
	}

	reservation, err := s.reservations.GetReservationByID(ctx, reservationID)
	if err != nil {
		return err
	}
	if reservation.Status != models.ReservationStatusConfirmed {
		return models.ErrReservationNotConfirmed
	}

	moved, err := s.reservations.TransitionReservationStatus(ctx, reservationID,
		models.ReservationStatusConfirmed, models.ReservationStatusCompleted, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to complete reservation: %w", err)
	}
	if !moved {
		return models.ErrReservationNotConfirmed
	}

	if err := s.forceUnitStatus(ctx, reservation.UnitID, models.UnitStatusSold); err != nil {
		return err
	}

	util.ReservationsClosedTotal.WithLabelValues("completed").Inc()
	s.logger.Info("Reservation completed",
		zap.Int64("reservation_id", reservationID),
		zap.Int64("unit_id", reservation.UnitID),
		zap.Int64("caller_id", callerID))

	s.emitActivity(ctx, &models.ActivityEvent{
		ActorID:     callerID,
		Action:      models.ActionComplete,
		EntityType:  models.EntityTypeReservation,
		EntityID:    reservationID,
		Description: fmt.Sprintf("Completed reservation %d, unit %d sold", reservationID, reservation.UnitID),
	})

	return nil
}

// forceUnitStatus drives the unit to the target status regardless of
// where it currently sits, re-reading between compare-and-set attempts.
func (s *ReservationService) forceUnitStatus(ctx context.Context, unitID int64, target models.UnitStatus) error {
	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		unit, err := s.units.GetUnit(ctx, unitID)
		if err != nil {
			return err
		}
		if unit.Status == target {
			return nil
		}

		err = s.units.TransitionUnitStatus(ctx, unitID, unit.Status, target)
		if err == nil {
			return nil
		}
		if !errors.Is(err, models.ErrStatusConflict) {
			return fmt.Errorf("failed to set unit status: %w", err)
		}
	}

	util.LockContentionTotal.Inc()
	return models.ErrContention
}

// releaseReservedUnit re-derives a unit's status after its confirmed
// reservation is cancelled.
func (s *ReservationService) releaseReservedUnit(ctx context.Context, unitID int64) error {
	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		unit, err := s.units.GetUnit(ctx, unitID)
		if err != nil {
			return err
		}
		if unit.Status != models.UnitStatusReserved {
			return nil
		}

		next := models.UnitStatusAvailable
		active, err := s.locks.GetActiveLockByUnit(ctx, unitID)
		if err != nil {
			return fmt.Errorf("failed to check active lock: %w", err)
		}
		if active != nil {
			next = models.UnitStatusLocked
		}

		err = s.units.TransitionUnitStatus(ctx, unitID, models.UnitStatusReserved, next)
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

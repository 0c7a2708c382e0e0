package store

import (
	"context"
	"database/sql"
	"time"

	"booking-service/internal/models"
)

// CreateReservation appends a reservation to the ledger in its initial
// status with the price frozen at creation time.
func (s *Store) CreateReservation(ctx context.Context, r *models.Reservation) error {
	query := `
		INSERT INTO reservations
			(unit_id, holder_id, status, reserved_at, price,
			 customer_name, customer_phone, customer_email, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	return s.db.GetContext(ctx, &r.ID, query,
		r.UnitID, r.HolderID, r.Status, r.ReservedAt, r.Price,
		r.CustomerName, r.CustomerPhone, r.CustomerEmail, r.Notes)
}

// GetReservationByID retrieves a reservation by ID
func (s *Store) GetReservationByID(ctx context.Context, id int64) (*models.Reservation, error) {
	var r models.Reservation
	err := s.db.GetContext(ctx, &r, "SELECT * FROM reservations WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// reservation status transitions stamp their own timestamp column
var reservationStampColumn = map[models.ReservationStatus]string{
	models.ReservationStatusConfirmed: "confirmed_at",
	models.ReservationStatusCancelled: "cancelled_at",
	models.ReservationStatusCompleted: "completed_at",
}

// TransitionReservationStatus is the reservation counterpart of the
// unit compare-and-set: the update applies only while the reservation
// is still in the expected status. Returns false with no mutation when
// a concurrent transition won.
func (s *Store) TransitionReservationStatus(ctx context.Context, id int64, expected, next models.ReservationStatus, at time.Time) (bool, error) {
	query := "UPDATE reservations SET status = $1 WHERE id = $2 AND status = $3"
	args := []interface{}{next, id, expected}

	if col, ok := reservationStampColumn[next]; ok {
		query = "UPDATE reservations SET status = $1, " + col + " = $4 WHERE id = $2 AND status = $3"
		args = append(args, at)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

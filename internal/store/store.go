package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"booking-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetUnit retrieves a unit by ID
func (s *Store) GetUnit(ctx context.Context, id int64) (*models.Unit, error) {
	var unit models.Unit
	err := s.db.GetContext(ctx, &unit, "SELECT * FROM units WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrUnitNotFound
	}
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

// TransitionUnitStatus is the compare-and-set primitive every status
// change goes through. The update applies only if the unit's current
// status matches expected; otherwise ErrStatusConflict is returned and
// nothing is mutated. The version counter bumps on every transition.
func (s *Store) TransitionUnitStatus(ctx context.Context, unitID int64, expected, next models.UnitStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE units
		 SET status = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		next, unitID, expected)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrStatusConflict
	}
	return nil
}

// gridRow is the flattened join used by the grid view.
type gridRow struct {
	models.Unit
	LockID            sql.NullInt64  `db:"lock_id"`
	LockHolderID      sql.NullInt64  `db:"lock_holder_id"`
	LockExpiresAt     sql.NullTime   `db:"lock_expires_at"`
	ReservationID     sql.NullInt64  `db:"reservation_id"`
	ReservationStatus sql.NullString `db:"reservation_status"`
	Price             sql.NullInt64  `db:"price"`
	Discount          sql.NullInt64  `db:"discount"`
}

// GridUnit is one row of the sales grid: the unit plus its current
// active lock, current non-terminal reservation, and published price.
type GridUnit struct {
	Unit              models.Unit `json:"unit"`
	LockID            *int64      `json:"lock_id,omitempty"`
	LockHolderID      *int64      `json:"lock_holder_id,omitempty"`
	LockExpiresAt     *time.Time  `json:"lock_expires_at,omitempty"`
	ReservationID     *int64      `json:"reservation_id,omitempty"`
	ReservationStatus *string     `json:"reservation_status,omitempty"`
	Price             int64       `json:"price"`
	Discount          int64       `json:"discount"`
}

// ListGridUnits returns the grid view, optionally filtered by project
// and/or building.
func (s *Store) ListGridUnits(ctx context.Context, projectID, buildingID *int64) ([]GridUnit, error) {
	query := `
		SELECT u.*,
		       l.id AS lock_id, l.holder_id AS lock_holder_id, l.expires_at AS lock_expires_at,
		       r.id AS reservation_id, r.status AS reservation_status,
		       p.price AS price, p.discount AS discount
		FROM units u
		LEFT JOIN locks l ON l.unit_id = u.id AND l.is_active
		LEFT JOIN reservations r ON r.unit_id = u.id AND r.status IN ('PENDING', 'CONFIRMED')
		LEFT JOIN price_list_items p ON p.unit_id = u.id
		WHERE ($1::bigint IS NULL OR u.project_id = $1)
		  AND ($2::bigint IS NULL OR u.building_id = $2)
		ORDER BY u.id`

	var rows []gridRow
	if err := s.db.SelectContext(ctx, &rows, query, projectID, buildingID); err != nil {
		return nil, err
	}

	units := make([]GridUnit, 0, len(rows))
	for _, row := range rows {
		gu := GridUnit{Unit: row.Unit}
		if row.LockID.Valid {
			gu.LockID = &row.LockID.Int64
			gu.LockHolderID = &row.LockHolderID.Int64
			t := row.LockExpiresAt.Time
			gu.LockExpiresAt = &t
		}
		if row.ReservationID.Valid {
			gu.ReservationID = &row.ReservationID.Int64
			st := row.ReservationStatus.String
			gu.ReservationStatus = &st
		}
		if row.Price.Valid {
			gu.Price = row.Price.Int64
			gu.Discount = row.Discount.Int64
		}
		units = append(units, gu)
	}
	return units, nil
}

// GetUnitPrice returns the published price list entry for a unit, or
// nil when the unit has no published price yet.
func (s *Store) GetUnitPrice(ctx context.Context, unitID int64) (*models.PriceListItem, error) {
	var item models.PriceListItem
	err := s.db.GetContext(ctx, &item,
		"SELECT * FROM price_list_items WHERE unit_id = $1 LIMIT 1", unitID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

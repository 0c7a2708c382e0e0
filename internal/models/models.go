package models

import (
	"database/sql"
	"time"
)

// UnitStatus is the sale-pipeline state of a unit.
type UnitStatus string

const (
	UnitStatusAvailable UnitStatus = "AVAILABLE"
	UnitStatusLocked    UnitStatus = "LOCKED"
	UnitStatusReserved  UnitStatus = "RESERVED"
	UnitStatusSold      UnitStatus = "SOLD"
)

// Unit represents one sellable inventory unit. Status is mutated only
// through the lock/reservation services, never directly.
type Unit struct {
	ID         int64      `db:"id" json:"id"`
	UnitNumber string     `db:"unit_number" json:"unit_number"`
	BuildingID int64      `db:"building_id" json:"building_id"`
	ProjectID  int64      `db:"project_id" json:"project_id"`
	Floor      int        `db:"floor" json:"floor"`
	Status     UnitStatus `db:"status" json:"status"`
	Version    int64      `db:"version" json:"version"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Lock is one holder's temporary hold on a unit. At most one lock per
// unit may be active at any instant; a partial unique index on the
// locks table enforces this, not just application logic. Locks are
// never deleted, only deactivated.
type Lock struct {
	ID         int64          `db:"id" json:"id"`
	UnitID     int64          `db:"unit_id" json:"unit_id"`
	HolderID   int64          `db:"holder_id" json:"holder_id"`
	LockedAt   time.Time      `db:"locked_at" json:"locked_at"`
	ExpiresAt  time.Time      `db:"expires_at" json:"expires_at"`
	IsActive   bool           `db:"is_active" json:"is_active"`
	ReleasedAt sql.NullTime   `db:"released_at" json:"released_at,omitempty"`
	Notes      sql.NullString `db:"notes" json:"notes,omitempty"`
}

// ReservationStatus values. Cancelled and Completed are terminal.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusCompleted ReservationStatus = "COMPLETED"
)

// Reservation carries customer-level sale intent for a unit. Price is
// captured once at creation and never re-derived.
type Reservation struct {
	ID            int64             `db:"id" json:"id"`
	UnitID        int64             `db:"unit_id" json:"unit_id"`
	HolderID      int64             `db:"holder_id" json:"holder_id"`
	Status        ReservationStatus `db:"status" json:"status"`
	ReservedAt    time.Time         `db:"reserved_at" json:"reserved_at"`
	ConfirmedAt   sql.NullTime      `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CancelledAt   sql.NullTime      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CompletedAt   sql.NullTime      `db:"completed_at" json:"completed_at,omitempty"`
	Price         int64             `db:"price" json:"price"`
	CustomerName  string            `db:"customer_name" json:"customer_name"`
	CustomerPhone sql.NullString    `db:"customer_phone" json:"customer_phone,omitempty"`
	CustomerEmail sql.NullString    `db:"customer_email" json:"customer_email,omitempty"`
	Notes         sql.NullString    `db:"notes" json:"notes,omitempty"`
}

// PriceListItem carries the published price for a unit. Price-list
// publishing lives outside this service; only the lookup is here.
type PriceListItem struct {
	ID       int64 `db:"id" json:"id"`
	UnitID   int64 `db:"unit_id" json:"unit_id"`
	Price    int64 `db:"price" json:"price"`
	Discount int64 `db:"discount" json:"discount"`
}

// ActivityLog is the persisted audit trail row written by the audit
// worker from consumed activity events.
type ActivityLog struct {
	ID          int64     `db:"id" json:"id"`
	ActorID     int64     `db:"actor_id" json:"actor_id"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    int64     `db:"entity_id" json:"entity_id"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Caller roles supplied by the authentication boundary.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
	RoleAgent = "agent"
)

// IsAdministrative reports whether a role may act on claims it does not own.
func IsAdministrative(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}

// ProcessedEvent for consumer-side idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

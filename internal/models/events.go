package models

import "time"

// Activity actions. Each service operation emits its own action rather
// than deriving it from the request path.
const (
	ActionLock       = "LOCK"
	ActionUnlock     = "UNLOCK"
	ActionAutoUnlock = "AUTO_UNLOCK"
	ActionReserve    = "RESERVE"
	ActionConfirm    = "CONFIRM"
	ActionCancel     = "CANCEL"
	ActionComplete   = "COMPLETE"
)

// Entity types referenced by activity events.
const (
	EntityTypeUnit        = "UNIT"
	EntityTypeReservation = "RESERVATION"
)

// ActivityEvent is the structured record published for every successful
// state transition. Publishing is best-effort; a failed publish never
// fails the triggering operation.
type ActivityEvent struct {
	EventID     string    `json:"event_id"`
	ActorID     int64     `json:"actor_id"`
	Action      string    `json:"action"`
	EntityType  string    `json:"entity_type"`
	EntityID    int64     `json:"entity_id"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

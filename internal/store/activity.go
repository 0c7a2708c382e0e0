package store

import (
	"context"

	"booking-service/internal/models"
)

// InsertActivityLog persists one audit trail row.
func (s *Store) InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (actor_id, action, entity_type, entity_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return s.db.GetContext(ctx, &entry.ID, query,
		entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		entry.Description, entry.CreatedAt)
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

package service

import (
	"context"
	"database/sql"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// emitActivity stamps and publishes an activity event. Fire-and-forget:
// a publish failure is logged and counted, never surfaced to the caller.
func (s *LockService) emitActivity(ctx context.Context, event *models.ActivityEvent) {
	publishActivity(ctx, s.activity, s.logger, event, s.clock.Now())
}

func (s *ReservationService) emitActivity(ctx context.Context, event *models.ActivityEvent) {
	publishActivity(ctx, s.activity, s.logger, event, s.clock.Now())
}

func publishActivity(ctx context.Context, sink ActivitySink, logger *zap.Logger, event *models.ActivityEvent, now time.Time) {
	event.EventID = uuid.New().String()
	event.Timestamp = now

	if err := sink.Publish(ctx, event); err != nil {
		util.ActivityPublishFailedTotal.Inc()
		logger.Error("Failed to publish activity event",
			zap.String("action", event.Action),
			zap.Int64("entity_id", event.EntityID),
			zap.Error(err))
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

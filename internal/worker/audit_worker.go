package worker

import (
	"context"
	"encoding/json"

	"booking-service/internal/broker"
	"booking-service/internal/models"
	"booking-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// AuditStore persists the audit trail with at-least-once dedup.
type AuditStore interface {
	InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// AuditWorker consumes activity events and persists them as audit
// trail rows.
type AuditWorker struct {
	consumer *broker.Consumer
	store    AuditStore
	logger   *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, store AuditStore) *AuditWorker {
	return &AuditWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}

func (w *AuditWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.ActivityEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// Malformed messages are dropped, not retried forever.
		w.logger.Error("Dropping malformed activity event", zap.Error(err))
		return nil
	}

	if event.EventID != "" {
		processed, err := w.store.IsEventProcessed(ctx, event.EventID)
		if err != nil {
			return err
		}
		if processed {
			return nil
		}
	}

	entry := &models.ActivityLog{
		ActorID:     event.ActorID,
		Action:      event.Action,
		EntityType:  event.EntityType,
		EntityID:    event.EntityID,
		Description: event.Description,
		CreatedAt:   event.Timestamp,
	}
	if err := w.store.InsertActivityLog(ctx, entry); err != nil {
		return err
	}

	if event.EventID != "" {
		if err := w.store.MarkEventProcessed(ctx, event.EventID, event.Action); err != nil {
			w.logger.Error("Failed to mark event processed",
				zap.String("event_id", event.EventID),
				zap.Error(err))
		}
	}

	return nil
}

package broker

import (
	"context"
	"fmt"

	"booking-service/internal/models"
)

// ActivityPublisher publishes activity events to the sink topic. All
// publishing is best-effort from the caller's point of view: the
// services log a failed publish and carry on.
type ActivityPublisher struct {
	producer *Producer
}

// NewActivityPublisher creates a new activity publisher
func NewActivityPublisher(producer *Producer) *ActivityPublisher {
	return &ActivityPublisher{producer: producer}
}

// Publish publishes one activity event, keyed by entity so events for
// the same unit stay ordered within a partition.
func (ap *ActivityPublisher) Publish(ctx context.Context, event *models.ActivityEvent) error {
	key := fmt.Sprintf("%s-%d", event.EntityType, event.EntityID)
	return ap.producer.PublishEvent(ctx, key, event)
}

package finance

import (
	"context"

	"github.com/crechebooks/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// publishEvents hands events to publisher after the change they describe is committed.
// A publish failure is logged and never undoes the bookkeeping change.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, events ...shared.DomainEvent) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Error("Failed to publish domain events",
			zap.String("event_type", events[0].EventType()),
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/events"
)

// StartEventRelay subscribes to every domain event and forwards it as JSON on channel
// for external integrations. Relay failures are logged and never reach the publisher.
func StartEventRelay(dispatcher events.Dispatcher, broadcaster events.Broadcaster, channel string, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, relayHandler(broadcaster, channel, logger))
	}
	logger.Info("event relay started", zap.String("channel", channel), zap.Int("event_types", len(events.AllEventTypes)))
}

func relayHandler(broadcaster events.Broadcaster, channel string, logger *zap.Logger) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		logger.Debug("domain event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("ticket_id", event.TicketID))
		if broadcaster == nil || channel == "" {
			return nil
		}
		if err := broadcaster.PublishJSON(ctx, channel, event); err != nil {
			logger.Warn("event relay failed",
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)),
				zap.Error(err))
		}
		return nil
	}
}

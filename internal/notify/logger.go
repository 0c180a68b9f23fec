package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-portal/internal/events"
)

// EventLogger records every domain event for diagnostics.
type EventLogger struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewEventLogger creates the subscriber.
func NewEventLogger(dispatcher events.Dispatcher, logger *zap.Logger) *EventLogger {
	return &EventLogger{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to all event types.
func (l *EventLogger) RegisterHandlers() {
	if l.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketCommentAdded,
		events.EventCategoryCreated,
		events.EventCategoryDeleted,
	} {
		l.dispatcher.Subscribe(eventType, l.handle)
	}
}

func (l *EventLogger) handle(ctx context.Context, event events.Event) error {
	l.logger.Info(string(event.Type),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.ID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.Any("payload", event.Payload),
	)
	return nil
}

package events

import (
	"time"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
	EventCategoryCreated     EventType = "category_created"
	EventCategoryDeleted     EventType = "category_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	TicketID  string       `json:"ticket_id,omitempty"`
	Actor     domain.Actor `json:"actor"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   interface{}  `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title      string `json:"title"`
	CategoryID string `json:"category_id"`
	HasAttach  bool   `json:"has_attachment"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.Status `json:"old_status"`
	NewStatus domain.Status `json:"new_status"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	BodyPreview string `json:"body_preview"`
}

// CategoryPayload payload for category events.
type CategoryPayload struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name,omitempty"`
}

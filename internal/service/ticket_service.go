package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/events"
	"github.com/spec-kit/helpdesk-portal/internal/notify"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
	"github.com/spec-kit/helpdesk-portal/internal/retry"
	"github.com/spec-kit/helpdesk-portal/internal/store"
	apperrors "github.com/spec-kit/helpdesk-portal/pkg/util/errorutil"
)

// TicketService coordinates the ticket lifecycle: creation, status
// transitions, and the append-only conversation log. Every store mutation
// goes through the retry policy; on exhaustion the error surfaces as a
// notification and the caller's state is left unchanged.
type TicketService struct {
	tickets       repository.TicketRepository
	blobs         store.BlobStore
	retry         retry.Policy
	dispatcher    events.Dispatcher
	notifications *notify.Center
	logger        *zap.Logger
	now           func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	Blobs         store.BlobStore
	Retry         retry.Policy
	Dispatcher    events.Dispatcher
	Notifications *notify.Center
	Logger        *zap.Logger
}

// TicketCreateInput describes the ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	CategoryID  string
	Attachment  *AttachmentInput
}

// AttachmentInput carries uploaded file content for the creation comment.
type AttachmentInput struct {
	FileName    string
	ContentType string
	Data        []byte
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:       deps.TicketRepo,
		blobs:         deps.Blobs,
		retry:         deps.Retry,
		dispatcher:    deps.Dispatcher,
		notifications: deps.Notifications,
		logger:        deps.Logger,
		now:           time.Now,
	}
}

// WithClock substitutes the time source for deterministic tests.
func (s *TicketService) WithClock(now func() time.Time) *TicketService {
	s.now = now
	return s
}

// Create files a new ticket with status Open and a single system comment.
// When an attachment is supplied its upload must complete first; an upload
// failure aborts the whole creation and nothing is persisted.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	missing := map[string]any{}
	if strings.TrimSpace(input.Title) == "" {
		missing["title"] = "required"
	}
	if strings.TrimSpace(input.Description) == "" {
		missing["description"] = "required"
	}
	if strings.TrimSpace(input.CategoryID) == "" {
		missing["category"] = "required"
	}
	if actor.ID == "" {
		missing["actor"] = "required"
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("all fields are required", missing)
	}

	attachmentURL := ""
	if input.Attachment != nil {
		key := uuid.NewString() + "-" + input.Attachment.FileName
		url, err := s.blobs.Upload(ctx, key, input.Attachment.Data, input.Attachment.ContentType)
		if err != nil {
			s.notify(actor, "Failed to upload attachment.", notify.SeverityError)
			return nil, apperrors.NewAttachmentUploadError(err)
		}
		attachmentURL = url
	}

	now := s.now()
	ticket := &domain.Ticket{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    input.CategoryID,
		Status:      domain.StatusOpen,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Comments: []domain.Comment{{
			Text:          "Ticket created by " + actor.DisplayName() + ".",
			CreatedAt:     now,
			CreatedBy:     actor.ID,
			IsSystem:      true,
			AttachmentURL: attachmentURL,
		}},
	}

	err := s.retry.Do(ctx, "create ticket", func(ctx context.Context) error {
		return s.tickets.Create(ctx, ticket)
	})
	if err != nil {
		s.notify(actor, "Failed to create ticket.", notify.SeverityError)
		return nil, apperrors.NewRemoteWriteError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketCreatedPayload{
			Title:      ticket.Title,
			CategoryID: ticket.Category,
			HasAttach:  attachmentURL != "",
		},
	})
	s.notify(actor, "Ticket created successfully!", notify.SeveritySuccess)
	return ticket, nil
}

// ChangeStatus transitions the ticket to newStatus. Any status may follow any
// other; the transition, its audit comment, and the updatedAt bump land in a
// single store write.
func (s *TicketService) ChangeStatus(ctx context.Context, actor domain.Actor, ticketID, newStatus string) (*domain.Ticket, error) {
	if !actor.CanChangeStatus() {
		return nil, apperrors.NewForbidden("status changes require a support agent or admin")
	}
	status, ok := domain.ParseStatus(newStatus)
	if !ok {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	now := s.mutationTime(ticket)
	comment := domain.Comment{
		Text:      "Status changed to '" + status.String() + "' by " + actor.DisplayName() + ".",
		CreatedAt: now,
		CreatedBy: actor.ID,
		IsSystem:  true,
	}
	comments := append(append([]domain.Comment{}, ticket.Comments...), comment)

	err = s.retry.Do(ctx, "change status", func(ctx context.Context) error {
		return s.tickets.Apply(ctx, ticket.ID, repository.TicketChange{
			Status:    &status,
			Comments:  comments,
			UpdatedAt: now,
		})
	})
	if err != nil {
		s.notify(actor, "Failed to update ticket status.", notify.SeverityError)
		return nil, apperrors.NewRemoteWriteError(err)
	}

	oldStatus := ticket.Status
	ticket.Status = status
	ticket.Comments = comments
	ticket.UpdatedAt = now

	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: status,
		},
	})
	s.notify(actor, "Ticket status updated!", notify.SeveritySuccess)
	return ticket, nil
}

// AddComment appends a non-system comment. Empty or whitespace-only text is a
// silent no-op: no store call is issued and the nil ticket signals the skip.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID, text string) (*domain.Ticket, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.CanReply(ticket) {
		return nil, apperrors.NewForbidden("admins may only reply on their own tickets")
	}

	now := s.mutationTime(ticket)
	comment := domain.Comment{
		Text:      text,
		CreatedAt: now,
		CreatedBy: actor.ID,
	}
	comments := append(append([]domain.Comment{}, ticket.Comments...), comment)

	err = s.retry.Do(ctx, "add comment", func(ctx context.Context) error {
		return s.tickets.Apply(ctx, ticket.ID, repository.TicketChange{
			Comments:  comments,
			UpdatedAt: now,
		})
	})
	if err != nil {
		s.notify(actor, "Failed to add comment.", notify.SeverityError)
		return nil, apperrors.NewRemoteWriteError(err)
	}

	ticket.Comments = comments
	ticket.UpdatedAt = now

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketCommentAddedPayload{
			BodyPreview: preview(text, 120),
		},
	})
	s.notify(actor, "Comment added!", notify.SeveritySuccess)
	return ticket, nil
}

// Get fetches one ticket; a stale or unknown id resolves to a not-found
// state, never a crash.
func (s *TicketService) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.getTicket(ctx, ticketID)
}

// List returns the full ticket set; visibility is the caller's concern.
func (s *TicketService) List(ctx context.Context) ([]domain.Ticket, error) {
	return s.tickets.List(ctx)
}

// Subscribe opens a live snapshot stream of the ticket collection.
func (s *TicketService) Subscribe(ctx context.Context) (*store.Subscription, error) {
	return s.tickets.Subscribe(ctx)
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// mutationTime keeps updatedAt monotonic even under clock skew.
func (s *TicketService) mutationTime(ticket *domain.Ticket) time.Time {
	now := s.now()
	if now.Before(ticket.CreatedAt) {
		return ticket.CreatedAt
	}
	if now.Before(ticket.UpdatedAt) {
		return ticket.UpdatedAt
	}
	return now
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *TicketService) notify(actor domain.Actor, message string, severity notify.Severity) {
	if s.notifications == nil {
		return
	}
	s.notifications.Push(actor.ID, message, severity)
}

func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}

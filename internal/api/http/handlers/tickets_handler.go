package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-portal/internal/api/dto"
	"github.com/spec-kit/helpdesk-portal/internal/auth"
	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/query"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
	"github.com/spec-kit/helpdesk-portal/internal/service"
	"github.com/spec-kit/helpdesk-portal/internal/store"
	apperrors "github.com/spec-kit/helpdesk-portal/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	tickets    *service.TicketService
	categories *service.CategoryService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, categories *service.CategoryService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, categories: categories}
}

// ListTickets GET /tickets. Filters and ordering come from the query string;
// visibility is applied before any filter runs.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}

	tickets, err := h.tickets.List(c.Context())
	if err != nil {
		return err
	}
	visible := query.Apply(query.Visible(tickets, actor), parseTicketQuery(c))

	names, err := h.categories.List(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(visible))
	for i := range visible {
		items = append(items, ticketSummary(&visible[i], names))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	ticket, err := h.tickets.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	// An end-user asking for someone else's ticket learns nothing,
	// not even that it exists.
	if actor.Role == domain.RoleEndUser && ticket.CreatedBy != actor.ID {
		return apperrors.NewNotFound("ticket", map[string]any{"id": c.Params("id")})
	}

	names, err := h.categories.List(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, names)})
}

// CreateTicket POST /tickets. Accepts a JSON body, or multipart form data
// when the ticket carries an attachment.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}

	input, err := parseCreateTicket(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Create(c.Context(), actor, input)
	if err != nil {
		return err
	}

	names, err := h.categories.List(c.Context())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket, names)})
}

// AddComment POST /tickets/:id/comments. Blank text is acknowledged without
// touching the ticket.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.AddComment(c.Context(), actor, c.Params("id"), req.Text)
	if err != nil {
		return err
	}
	if ticket == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	names, err := h.categories.List(c.Context())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket, names)})
}

// ChangeStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.ChangeStatus(c.Context(), actor, c.Params("id"), req.Status)
	if err != nil {
		return err
	}

	names, err := h.categories.List(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, names)})
}

// watchKeepalive bounds how long a dead client can hold a watch
// subscription open between snapshots.
const watchKeepalive = 15 * time.Second

// Watch GET /tickets/watch streams the actor's visible ticket set as
// server-sent events: one full snapshot per change, newest state always last.
// The category catalog is watched alongside the tickets so labels stay
// current across category adds and deletes.
func (h *TicketsHandler) Watch(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}

	tickets, err := h.tickets.Subscribe(c.Context())
	if err != nil {
		return err
	}
	categories, err := h.categories.Subscribe(c.Context())
	if err != nil {
		tickets.Cancel()
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		h.stream(w, actor, tickets, categories)
	})
	return nil
}

// stream pumps snapshots until both subscriptions close or the client goes
// away. A ticket snapshot always emits; a category snapshot re-emits the
// last ticket set with fresh labels.
func (h *TicketsHandler) stream(w *bufio.Writer, actor domain.Actor, tickets, categories *store.Subscription) {
	defer tickets.Cancel()
	defer categories.Cancel()

	keepalive := time.NewTicker(watchKeepalive)
	defer keepalive.Stop()

	var (
		names   []domain.Category
		visible []domain.Ticket
		seen    bool
	)
	ticketCh := tickets.C
	categoryCh := categories.C
	for ticketCh != nil || categoryCh != nil {
		emit := false
		select {
		case snapshot, ok := <-categoryCh:
			if !ok {
				categoryCh = nil
				continue
			}
			names = decodeCategories(snapshot)
			emit = seen
		case snapshot, ok := <-ticketCh:
			if !ok {
				ticketCh = nil
				continue
			}
			visible = query.Visible(decodeSnapshot(snapshot), actor)
			seen = true
			emit = true
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
			continue
		}
		if !emit {
			continue
		}
		items := make([]dto.TicketSummary, 0, len(visible))
		for i := range visible {
			items = append(items, ticketSummary(&visible[i], names))
		}
		payload, err := json.Marshal(items)
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func parseCreateTicket(c *fiber.Ctx) (service.TicketCreateInput, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return parseMultipartTicket(c)
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return service.TicketCreateInput{}, apperrors.NewValidationError("invalid payload", nil)
	}
	return service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.Category,
	}, nil
}

func parseMultipartTicket(c *fiber.Ctx) (service.TicketCreateInput, error) {
	input := service.TicketCreateInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		CategoryID:  c.FormValue("category"),
	}
	header, err := c.FormFile("attachment")
	if err != nil {
		// no file part means a plain form submission
		return input, nil
	}
	file, err := header.Open()
	if err != nil {
		return input, apperrors.NewValidationError("unreadable attachment", nil)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return input, apperrors.NewValidationError("unreadable attachment", nil)
	}
	input.Attachment = &service.AttachmentInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	return input, nil
}

func parseTicketQuery(c *fiber.Ctx) query.Params {
	params := query.Params{
		Status:   c.Query("status", query.All),
		Category: c.Query("category", query.All),
		Search:   c.Query("q"),
		Sort:     query.SortKey(c.Query("sort", string(query.SortUpdatedAt))),
		Order:    query.Desc,
	}
	if c.Query("order") == string(query.Asc) {
		params.Order = query.Asc
	}
	switch params.Sort {
	case query.SortUpdatedAt, query.SortCreatedAt, query.SortComments:
	default:
		params.Sort = query.SortUpdatedAt
	}
	return params
}

func decodeCategories(snapshot store.Snapshot) []domain.Category {
	categories := make([]domain.Category, 0, len(snapshot.Documents))
	for _, doc := range snapshot.Documents {
		category, err := repository.DecodeCategory(doc)
		if err != nil {
			continue
		}
		categories = append(categories, *category)
	}
	return categories
}

func decodeSnapshot(snapshot store.Snapshot) []domain.Ticket {
	tickets := make([]domain.Ticket, 0, len(snapshot.Documents))
	for _, doc := range snapshot.Documents {
		ticket, err := repository.DecodeTicket(doc)
		if err != nil {
			continue
		}
		tickets = append(tickets, *ticket)
	}
	return tickets
}

func ticketSummary(ticket *domain.Ticket, categories []domain.Category) dto.TicketSummary {
	return dto.TicketSummary{
		ID:           ticket.ID,
		Title:        ticket.Title,
		Category:     ticket.Category,
		CategoryName: domain.CategoryName(categories, ticket.Category),
		Status:       ticket.Status.String(),
		CreatedBy:    ticket.CreatedBy,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
		CommentCount: ticket.CommentCount(),
	}
}

func ticketDetail(ticket *domain.Ticket, categories []domain.Category) dto.TicketDetailResponse {
	comments := make([]dto.CommentResponse, 0, len(ticket.Comments))
	for _, comment := range ticket.Comments {
		comments = append(comments, dto.CommentResponse{
			Text:          comment.Text,
			CreatedAt:     comment.CreatedAt,
			CreatedBy:     comment.CreatedBy,
			IsSystem:      comment.IsSystem,
			AttachmentURL: comment.AttachmentURL,
		})
	}
	return dto.TicketDetailResponse{
		ID:           ticket.ID,
		Title:        ticket.Title,
		Description:  ticket.Description,
		Category:     ticket.Category,
		CategoryName: domain.CategoryName(categories, ticket.Category),
		Status:       ticket.Status.String(),
		CreatedBy:    ticket.CreatedBy,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
		Comments:     comments,
	}
}

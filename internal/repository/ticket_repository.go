package repository

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/store"
)

// TicketChange is a partial mutation: only non-nil fields are written, so a
// change never clobbers fields it does not name. Status and the appended
// audit comment travel in the same write.
type TicketChange struct {
	Status    *domain.Status
	Comments  []domain.Comment
	UpdatedAt time.Time
}

// TicketRepository encapsulates ticket persistence over the document store.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context) ([]domain.Ticket, error)
	Apply(ctx context.Context, id string, change TicketChange) error
	Subscribe(ctx context.Context) (*store.Subscription, error)
}

type ticketRepository struct {
	client store.Client
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(client store.Client) TicketRepository {
	return &ticketRepository{client: client}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	fields, err := store.Fields(ticket)
	if err != nil {
		return err
	}
	delete(fields, "id")
	id, err := r.client.Create(ctx, store.CollectionTickets, fields)
	if err != nil {
		return err
	}
	ticket.ID = id
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	doc, err := r.client.Get(ctx, store.CollectionTickets, id)
	if err != nil {
		return nil, err
	}
	return DecodeTicket(doc)
}

func (r *ticketRepository) List(ctx context.Context) ([]domain.Ticket, error) {
	docs, err := r.client.List(ctx, store.CollectionTickets)
	if err != nil {
		return nil, err
	}
	tickets := make([]domain.Ticket, 0, len(docs))
	for _, doc := range docs {
		ticket, err := DecodeTicket(doc)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, nil
}

func (r *ticketRepository) Apply(ctx context.Context, id string, change TicketChange) error {
	fields := map[string]any{
		"updatedAt": change.UpdatedAt.Format(time.RFC3339Nano),
	}
	if change.Status != nil {
		fields["status"] = string(*change.Status)
	}
	if change.Comments != nil {
		comments, err := store.Fields(struct {
			Comments []domain.Comment `json:"comments"`
		}{Comments: change.Comments})
		if err != nil {
			return err
		}
		fields["comments"] = comments["comments"]
	}
	return r.client.Update(ctx, store.CollectionTickets, id, fields)
}

func (r *ticketRepository) Subscribe(ctx context.Context) (*store.Subscription, error) {
	return r.client.Subscribe(ctx, store.CollectionTickets)
}

// DecodeTicket maps a stored document onto the domain record.
func DecodeTicket(doc store.Document) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := doc.Decode(&ticket); err != nil {
		return nil, err
	}
	ticket.ID = doc.ID
	return &ticket, nil
}

package query

import (
	"sort"
	"strings"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
)

// All is the pass-through sentinel for the status and category filters.
const All = "all"

// SortKey selects the ordering field.
type SortKey string

const (
	SortUpdatedAt SortKey = "updatedAt"
	SortCreatedAt SortKey = "createdAt"
	SortComments  SortKey = "comments"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Params narrows and orders a visible ticket set. Filters intersect, so their
// relative order never changes the result; the sort is always the final stage.
type Params struct {
	Status   string
	Category string
	Search   string
	Sort     SortKey
	Order    Order
}

// Visible projects the ticket set down to what the actor may see. End-users
// see only their own tickets; agents and admins see everything. Pure and
// side-effect free.
func Visible(tickets []domain.Ticket, actor domain.Actor) []domain.Ticket {
	switch actor.Role {
	case domain.RoleSupportAgent, domain.RoleAdmin:
		return append([]domain.Ticket(nil), tickets...)
	case domain.RoleEndUser:
	}
	visible := []domain.Ticket{}
	for _, ticket := range tickets {
		if ticket.CreatedBy == actor.ID {
			visible = append(visible, ticket)
		}
	}
	return visible
}

// Apply filters by status, then category, then free-text search, then sorts.
// The sort is stable: tickets with equal keys keep their prior relative order.
func Apply(tickets []domain.Ticket, params Params) []domain.Ticket {
	filtered := append([]domain.Ticket(nil), tickets...)

	if params.Status != "" && params.Status != All {
		kept := filtered[:0]
		for _, ticket := range filtered {
			if ticket.Status.Equals(params.Status) {
				kept = append(kept, ticket)
			}
		}
		filtered = kept
	}

	if params.Category != "" && params.Category != All {
		kept := filtered[:0]
		for _, ticket := range filtered {
			if ticket.Category == params.Category {
				kept = append(kept, ticket)
			}
		}
		filtered = kept
	}

	if params.Search != "" {
		needle := strings.ToLower(params.Search)
		kept := filtered[:0]
		for _, ticket := range filtered {
			if strings.Contains(strings.ToLower(ticket.Title), needle) ||
				strings.Contains(strings.ToLower(ticket.Description), needle) {
				kept = append(kept, ticket)
			}
		}
		filtered = kept
	}

	sortTickets(filtered, params.Sort, params.Order)
	return filtered
}

func sortTickets(tickets []domain.Ticket, key SortKey, order Order) {
	if key == "" {
		return
	}
	less := func(a, b *domain.Ticket) bool {
		switch key {
		case SortComments:
			return a.CommentCount() < b.CommentCount()
		case SortCreatedAt:
			// zero time sorts lowest
			return a.CreatedAt.Before(b.CreatedAt)
		case SortUpdatedAt:
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return false
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		if order == Desc {
			return less(&tickets[j], &tickets[i])
		}
		return less(&tickets[i], &tickets[j])
	})
}

// SortState tracks the active sort selection. Toggle mirrors the dashboard
// behavior: every toggle selects the key and flips the direction, whether or
// not the key changed. Callers needing a definite direction set Order
// explicitly on their Params.
type SortState struct {
	Key   SortKey
	Order Order
}

// Toggle selects key and flips the order.
func (s *SortState) Toggle(key SortKey) {
	s.Key = key
	if s.Order == Desc {
		s.Order = Asc
	} else {
		s.Order = Desc
	}
}

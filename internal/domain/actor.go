package domain

import (
	"fmt"
	"strings"
)

// Role is the closed set of actor roles. Switches over Role are exhaustive;
// adding a role is a compile-time decision, not a silent fallthrough.
type Role string

const (
	RoleEndUser      Role = "end-user"
	RoleSupportAgent Role = "support-agent"
	RoleAdmin        Role = "admin"
)

// ParseRole resolves a stored role string to a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(raw)) {
	case RoleEndUser:
		return RoleEndUser, nil
	case RoleSupportAgent:
		return RoleSupportAgent, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Actor is an authenticated identity with a role.
type Actor struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// CanChangeStatus reports whether the actor may transition ticket statuses.
func (a Actor) CanChangeStatus() bool {
	switch a.Role {
	case RoleSupportAgent, RoleAdmin:
		return true
	case RoleEndUser:
		return false
	}
	return false
}

// CanReply reports whether the actor may comment on the ticket. Admins are
// limited to tickets they created themselves; agents and end-users reply
// wherever visibility allows.
func (a Actor) CanReply(ticket *Ticket) bool {
	if a.Role != RoleAdmin {
		return true
	}
	return ticket != nil && ticket.CreatedBy == a.ID
}

// CanManageCategories reports whether the actor may create or delete categories.
func (a Actor) CanManageCategories() bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleEndUser, RoleSupportAgent:
		return false
	}
	return false
}

// DisplayName is used in system comment texts.
func (a Actor) DisplayName() string {
	if a.Email != "" {
		return a.Email
	}
	return "User"
}

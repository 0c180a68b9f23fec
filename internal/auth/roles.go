package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-portal/pkg/util/errorutil"
)

// RequireRole ensures the actor holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[actor.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireStaff gates status transitions to support agents and admins.
func RequireStaff() fiber.Handler {
	return RequireRole(domain.RoleSupportAgent, domain.RoleAdmin)
}

// RequireAdmin gates category management.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.RoleAdmin)
}

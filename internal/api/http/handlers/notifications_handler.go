package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-portal/internal/auth"
	"github.com/spec-kit/helpdesk-portal/internal/notify"
	apperrors "github.com/spec-kit/helpdesk-portal/pkg/util/errorutil"
)

// NotificationsHandler exposes the actor's pending transient notifications.
type NotificationsHandler struct {
	center *notify.Center
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(center *notify.Center) *NotificationsHandler {
	return &NotificationsHandler{center: center}
}

// ListNotifications GET /notifications. Expired notifications are pruned on
// read, so polling clients see each message for roughly the configured TTL.
func (h *NotificationsHandler) ListNotifications(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	return c.JSON(fiber.Map{"data": h.center.Recent(actor.ID)})
}

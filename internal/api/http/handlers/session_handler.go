package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-portal/internal/api/dto"
	"github.com/spec-kit/helpdesk-portal/internal/auth"
	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/service"
	apperrors "github.com/spec-kit/helpdesk-portal/pkg/util/errorutil"
)

// SessionHandler manages registration, login, and sign-out.
type SessionHandler struct {
	service *service.AuthService
}

// NewSessionHandler constructs handler.
func NewSessionHandler(authService *service.AuthService) *SessionHandler {
	return &SessionHandler{service: authService}
}

// Register POST /auth/register.
func (h *SessionHandler) Register(c *fiber.Ctx) error {
	var req dto.CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	session, err := h.service.Register(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": sessionResponse(session)})
}

// Login POST /auth/login.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var req dto.CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	session, err := h.service.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// Anonymous POST /auth/anonymous issues a guest session.
func (h *SessionHandler) Anonymous(c *fiber.Ctx) error {
	session, err := h.service.Anonymous(c.Context())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": sessionResponse(session)})
}

// SignOut POST /auth/signout revokes the presented token.
func (h *SessionHandler) SignOut(c *fiber.Ctx) error {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.service.SignOut(c.Context(), claims); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Me GET /auth/me returns the resolved actor, role included.
func (h *SessionHandler) Me(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	return c.JSON(fiber.Map{"data": actorResponse(actor)})
}

func sessionResponse(session *service.Session) dto.SessionResponse {
	return dto.SessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      actorResponse(session.Actor),
	}
}

func actorResponse(actor domain.Actor) dto.ActorResponse {
	return dto.ActorResponse{
		ID:    actor.ID,
		Email: actor.Email,
		Role:  string(actor.Role),
	}
}

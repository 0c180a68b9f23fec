package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
	"github.com/spec-kit/helpdesk-portal/internal/retry"
	"github.com/spec-kit/helpdesk-portal/internal/store"
	apperrors "github.com/spec-kit/helpdesk-portal/pkg/util/errorutil"
)

const (
	actorKey  = "auth_actor"
	claimsKey = "auth_claims"
)

// SessionContext validates bearer tokens and resolves the current actor. When
// no user record exists yet for the subject, one is bootstrapped with the
// end-user role and persisted before the request proceeds.
type SessionContext struct {
	tokens   *TokenManager
	users    repository.UserRepository
	denylist *Denylist
	retry    retry.Policy
	logger   *zap.Logger
}

// NewSessionContext constructs the middleware.
func NewSessionContext(tokens *TokenManager, users repository.UserRepository, denylist *Denylist, retryPolicy retry.Policy, logger *zap.Logger) *SessionContext {
	return &SessionContext{
		tokens:   tokens,
		users:    users,
		denylist: denylist,
		retry:    retryPolicy,
		logger:   logger,
	}
}

// Handle enforces authentication for protected routes.
func (s *SessionContext) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := s.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if s.denylist.Revoked(c.Context(), claims.ID) {
		return apperrors.NewUnauthorized("session signed out")
	}

	actor, err := s.users.GetByID(c.Context(), claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		actor, err = s.bootstrap(c, claims)
	}
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	c.Locals(actorKey, *actor)
	c.Locals(claimsKey, claims)
	return c.Next()
}

// bootstrap persists the default end-user record the first time a subject is
// observed without one.
func (s *SessionContext) bootstrap(c *fiber.Ctx, claims *Claims) (*domain.Actor, error) {
	actor := &domain.Actor{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  domain.RoleEndUser,
	}
	err := s.retry.Do(c.Context(), "bootstrap user", func(ctx context.Context) error {
		return s.users.Put(ctx, actor, "")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("bootstrapped user record", zap.String("user_id", actor.ID))
	return actor, nil
}

// ActorFromContext returns the authenticated actor set by Handle.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}

// ClaimsFromContext returns the parsed token claims set by Handle.
func ClaimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*Claims)
	return claims, ok
}

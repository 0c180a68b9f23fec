package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-portal/internal/auth"
	"github.com/spec-kit/helpdesk-portal/internal/config"
	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
	"github.com/spec-kit/helpdesk-portal/internal/retry"
	"github.com/spec-kit/helpdesk-portal/internal/store"
	apperrors "github.com/spec-kit/helpdesk-portal/pkg/util/errorutil"
)

// AuthService manages registration, login, anonymous sessions, and sign-out.
// New identities always start with the end-user role; role upgrades happen
// directly on the user record, outside this service.
type AuthService struct {
	users    repository.UserRepository
	tokens   *auth.TokenManager
	denylist *auth.Denylist
	retry    retry.Policy
	cfg      config.AuthConfig
	logger   *zap.Logger
}

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Tokens   *auth.TokenManager
	Denylist *auth.Denylist
	Retry    retry.Policy
	Logger   *zap.Logger
}

// Session is an issued login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Actor     domain.Actor
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:    deps.UserRepo,
		tokens:   deps.Tokens,
		denylist: deps.Denylist,
		retry:    deps.Retry,
		cfg:      cfg,
		logger:   deps.Logger,
	}
}

// Register creates a new end-user identity and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}

	if _, _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	actor := &domain.Actor{
		ID:    uuid.NewString(),
		Email: email,
		Role:  domain.RoleEndUser,
	}
	err = s.retry.Do(ctx, "register user", func(ctx context.Context) error {
		return s.users.Put(ctx, actor, hash)
	})
	if err != nil {
		return nil, apperrors.NewRemoteWriteError(err)
	}

	s.logger.Info("user registered", zap.String("user_id", actor.ID))
	return s.issue(*actor, false)
}

// Login verifies credentials and signs the user in.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}

	actor, hash, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if auth.ComparePassword(hash, password) != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	return s.issue(*actor, false)
}

// Anonymous issues a session for a fresh anonymous identity. The user record
// is bootstrapped with the end-user role on the identity's first request.
func (s *AuthService) Anonymous(ctx context.Context) (*Session, error) {
	actor := domain.Actor{
		ID:   uuid.NewString(),
		Role: domain.RoleEndUser,
	}
	return s.issue(actor, true)
}

// SignOut revokes the presented token until its natural expiry.
func (s *AuthService) SignOut(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return nil
	}
	expiresAt := time.Time{}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return s.denylist.Revoke(ctx, claims.ID, expiresAt)
}

func (s *AuthService) issue(actor domain.Actor, anonymous bool) (*Session, error) {
	token, expiresAt, err := s.tokens.GenerateToken(actor.ID, actor.Email, anonymous)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, Actor: actor}, nil
}

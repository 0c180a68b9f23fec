package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-portal/internal/auth"
	"github.com/spec-kit/helpdesk-portal/internal/config"
	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
	"github.com/spec-kit/helpdesk-portal/internal/retry"
	"github.com/spec-kit/helpdesk-portal/internal/store"
	apperrors "github.com/spec-kit/helpdesk-portal/pkg/util/errorutil"
)

func newAuthFixture(t *testing.T) (*AuthService, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	policy := retry.Policy{MaxRetries: 5, InitialDelay: time.Millisecond}.
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil })
	svc := NewAuthService(config.AuthConfig{BcryptCost: 4}, AuthDependencies{
		UserRepo: repository.NewUserRepository(mem),
		Tokens:   auth.NewTokenManager("test-secret", 60),
		Retry:    policy,
		Logger:   zap.NewNop(),
	})
	return svc, mem
}

func TestRegister_IssuesEndUserSession(t *testing.T) {
	svc, _ := newAuthFixture(t)
	session, err := svc.Register(context.Background(), "  New@Example.COM ", "hunter22")
	if err != nil {
		t.Fatalf("Register returned %v", err)
	}
	if session.Token == "" {
		t.Error("session has no token")
	}
	if session.Actor.Email != "new@example.com" {
		t.Errorf("email = %q, want normalized lowercase", session.Actor.Email)
	}
	if session.Actor.Role != domain.RoleEndUser {
		t.Errorf("role = %s, want end-user default", session.Actor.Role)
	}
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	svc, _ := newAuthFixture(t)
	if _, err := svc.Register(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatalf("first Register returned %v", err)
	}
	_, err := svc.Register(context.Background(), "A@EXAMPLE.COM", "other")
	if code := apperrors.ToDomainError(err).Code; code != "CONFLICT" {
		t.Errorf("error code = %s, want CONFLICT", code)
	}
}

func TestLogin_RoundTrip(t *testing.T) {
	svc, _ := newAuthFixture(t)
	if _, err := svc.Register(context.Background(), "a@example.com", "hunter22"); err != nil {
		t.Fatalf("Register returned %v", err)
	}

	session, err := svc.Login(context.Background(), "a@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login returned %v", err)
	}
	if session.Actor.Email != "a@example.com" {
		t.Errorf("actor = %+v", session.Actor)
	}
}

func TestLogin_BadCredentialsIndistinguishable(t *testing.T) {
	svc, _ := newAuthFixture(t)
	if _, err := svc.Register(context.Background(), "a@example.com", "hunter22"); err != nil {
		t.Fatalf("Register returned %v", err)
	}

	// Unknown email and wrong password read the same to the caller.
	_, unknownErr := svc.Login(context.Background(), "nobody@example.com", "hunter22")
	_, wrongErr := svc.Login(context.Background(), "a@example.com", "wrong")
	for _, err := range []error{unknownErr, wrongErr} {
		if code := apperrors.ToDomainError(err).Code; code != "UNAUTHORIZED" {
			t.Errorf("error code = %s, want UNAUTHORIZED", code)
		}
	}
}

func TestAnonymous_SessionCarriesAnonClaim(t *testing.T) {
	svc, mem := newAuthFixture(t)
	session, err := svc.Anonymous(context.Background())
	if err != nil {
		t.Fatalf("Anonymous returned %v", err)
	}
	if session.Actor.Role != domain.RoleEndUser {
		t.Errorf("role = %s, want end-user", session.Actor.Role)
	}

	claims, err := auth.NewTokenManager("test-secret", 60).ParseToken(session.Token)
	if err != nil {
		t.Fatalf("ParseToken returned %v", err)
	}
	if !claims.Anonymous {
		t.Error("anonymous session token missing anon claim")
	}
	if claims.Subject != session.Actor.ID {
		t.Errorf("subject = %q, want %q", claims.Subject, session.Actor.ID)
	}

	// The user record is bootstrapped lazily, not at issue time.
	if mem.Mutations() != 0 {
		t.Errorf("store mutations = %d, want 0", mem.Mutations())
	}
}

func TestRegister_StoresHashNotPassword(t *testing.T) {
	svc, mem := newAuthFixture(t)
	session, err := svc.Register(context.Background(), "a@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register returned %v", err)
	}

	doc, err := mem.Get(context.Background(), store.CollectionUsers, session.Actor.ID)
	if err != nil {
		t.Fatalf("Get returned %v", err)
	}
	hash, _ := doc.Fields["passwordHash"].(string)
	if hash == "" || hash == "hunter22" {
		t.Errorf("passwordHash = %q, want bcrypt hash", hash)
	}
	if err := auth.ComparePassword(hash, "hunter22"); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
}

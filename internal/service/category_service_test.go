package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/notify"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
	"github.com/spec-kit/helpdesk-portal/internal/retry"
	"github.com/spec-kit/helpdesk-portal/internal/store"
	apperrors "github.com/spec-kit/helpdesk-portal/pkg/util/errorutil"
)

type categoryFixture struct {
	svc *CategoryService
	mem *store.Memory
}

func newCategoryFixture(t *testing.T) *categoryFixture {
	t.Helper()
	mem := store.NewMemory()
	policy := retry.Policy{MaxRetries: 5, InitialDelay: time.Millisecond}.
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil })
	svc := NewCategoryService(CategoryDependencies{
		CategoryRepo:  repository.NewCategoryRepository(mem),
		Retry:         policy,
		Notifications: notify.NewCenter(time.Minute),
		Logger:        zap.NewNop(),
	})
	return &categoryFixture{svc: svc, mem: mem}
}

func TestCategoryCreate_AdminOnly(t *testing.T) {
	f := newCategoryFixture(t)
	for _, actor := range []domain.Actor{endUser, agent} {
		_, err := f.svc.Create(context.Background(), actor, "Hardware")
		if code := apperrors.ToDomainError(err).Code; code != "FORBIDDEN" {
			t.Errorf("Create as %s: code = %s, want FORBIDDEN", actor.Role, code)
		}
	}
	if f.mem.Mutations() != 0 {
		t.Errorf("store mutations = %d, want 0", f.mem.Mutations())
	}

	category, err := f.svc.Create(context.Background(), admin, "  Hardware  ")
	if err != nil {
		t.Fatalf("Create as admin returned %v", err)
	}
	if category.ID == "" || category.Name != "Hardware" {
		t.Errorf("category = %+v, want trimmed name and assigned id", category)
	}
}

func TestCategoryCreate_RejectsBlankName(t *testing.T) {
	f := newCategoryFixture(t)
	if _, err := f.svc.Create(context.Background(), admin, "   "); !apperrors.IsValidation(err) {
		t.Errorf("Create = %v, want validation error", err)
	}
}

func TestCategoryDelete_UnknownIDIsNotFound(t *testing.T) {
	f := newCategoryFixture(t)
	if err := f.svc.Delete(context.Background(), admin, "missing"); !apperrors.IsNotFound(err) {
		t.Errorf("Delete = %v, want not-found", err)
	}
	if f.mem.Deletes != 6 {
		t.Errorf("delete attempts = %d, want 6 (initial plus five retries)", f.mem.Deletes)
	}
}

func TestCategoryDelete_DoesNotCascadeToTickets(t *testing.T) {
	f := newCategoryFixture(t)
	category, err := f.svc.Create(context.Background(), admin, "Networking")
	if err != nil {
		t.Fatalf("Create returned %v", err)
	}

	tickets := NewTicketService(TicketDependencies{
		TicketRepo: repository.NewTicketRepository(f.mem),
		Blobs:      f.mem,
		Retry:      retry.Policy{},
		Logger:     zap.NewNop(),
	})
	input := validInput()
	input.CategoryID = category.ID
	ticket, err := tickets.Create(context.Background(), endUser, input)
	if err != nil {
		t.Fatalf("ticket create returned %v", err)
	}

	if err := f.svc.Delete(context.Background(), admin, category.ID); err != nil {
		t.Fatalf("Delete returned %v", err)
	}

	stored, err := tickets.Get(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("Get returned %v", err)
	}
	if stored.Category != category.ID {
		t.Errorf("ticket category = %q, want dangling reference %q kept", stored.Category, category.ID)
	}

	// The dangling reference resolves to the fallback label on display.
	remaining, _ := f.svc.List(context.Background())
	if got := domain.CategoryName(remaining, stored.Category); got != domain.CategoryFallback {
		t.Errorf("CategoryName = %q, want %q", got, domain.CategoryFallback)
	}
}

func TestCategoryCreate_RetriesThenSurfacesFailure(t *testing.T) {
	f := newCategoryFixture(t)
	f.mem.Err = errors.New("store down")
	_, err := f.svc.Create(context.Background(), admin, "Hardware")
	if code := apperrors.ToDomainError(err).Code; code != "REMOTE_WRITE_FAILED" {
		t.Fatalf("error code = %s, want REMOTE_WRITE_FAILED", code)
	}
	if f.mem.Creates != 6 {
		t.Errorf("create attempts = %d, want 6 (initial plus five retries)", f.mem.Creates)
	}
}

package handlers

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/notify"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
	"github.com/spec-kit/helpdesk-portal/internal/retry"
	"github.com/spec-kit/helpdesk-portal/internal/service"
	"github.com/spec-kit/helpdesk-portal/internal/store"
)

func newWatchFixture(t *testing.T) (*TicketsHandler, *service.TicketService, *service.CategoryService) {
	t.Helper()
	mem := store.NewMemory()
	policy := retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond}.
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil })
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:    repository.NewTicketRepository(mem),
		Blobs:         mem,
		Retry:         policy,
		Notifications: notify.NewCenter(time.Minute),
		Logger:        zap.NewNop(),
	})
	categories := service.NewCategoryService(service.CategoryDependencies{
		CategoryRepo:  repository.NewCategoryRepository(mem),
		Retry:         policy,
		Notifications: notify.NewCenter(time.Minute),
		Logger:        zap.NewNop(),
	})
	return NewTicketsHandler(tickets, categories), tickets, categories
}

func lastFrame(t *testing.T, raw string) string {
	t.Helper()
	frames := []string{}
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, "data: ") {
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		}
	}
	if len(frames) == 0 {
		t.Fatalf("no data frames in stream output %q", raw)
	}
	return frames[len(frames)-1]
}

func TestStream_CategoryLabelsFollowCatalogChanges(t *testing.T) {
	handler, tickets, categories := newWatchFixture(t)
	ctx := context.Background()
	requester := domain.Actor{ID: "user-a", Email: "a@example.com", Role: domain.RoleEndUser}
	adminActor := domain.Actor{ID: "admin-1", Email: "admin@example.com", Role: domain.RoleAdmin}

	ticketSub, err := tickets.Subscribe(ctx)
	if err != nil {
		t.Fatalf("ticket subscribe: %v", err)
	}
	categorySub, err := categories.Subscribe(ctx)
	if err != nil {
		t.Fatalf("category subscribe: %v", err)
	}

	// Catalog is created after the watch begins; every snapshot is
	// buffered before the stream loop runs.
	category, err := categories.Create(ctx, adminActor, "Networking")
	if err != nil {
		t.Fatalf("category create: %v", err)
	}
	input := service.TicketCreateInput{Title: "VPN down", Description: "no tunnel", CategoryID: category.ID}
	if _, err := tickets.Create(ctx, requester, input); err != nil {
		t.Fatalf("ticket create: %v", err)
	}
	ticketSub.Cancel()
	categorySub.Cancel()

	var out bytes.Buffer
	handler.stream(bufio.NewWriter(&out), requester, ticketSub, categorySub)

	frame := lastFrame(t, out.String())
	if !strings.Contains(frame, `"categoryName":"Networking"`) {
		t.Errorf("final frame lacks the fresh catalog label: %s", frame)
	}
	if !strings.Contains(frame, `"title":"VPN down"`) {
		t.Errorf("final frame lacks the ticket: %s", frame)
	}
}

func TestStream_AppliesVisibilityPerActor(t *testing.T) {
	handler, tickets, _ := newWatchFixture(t)
	ctx := context.Background()
	owner := domain.Actor{ID: "user-a", Email: "a@example.com", Role: domain.RoleEndUser}
	stranger := domain.Actor{ID: "user-b", Email: "b@example.com", Role: domain.RoleEndUser}

	if _, err := tickets.Create(ctx, owner, service.TicketCreateInput{
		Title: "Printer jam", Description: "tray 2", CategoryID: "cat-1",
	}); err != nil {
		t.Fatalf("ticket create: %v", err)
	}

	subscribeAndStream := func(actor domain.Actor) string {
		ticketSub, err := tickets.Subscribe(ctx)
		if err != nil {
			t.Fatalf("ticket subscribe: %v", err)
		}
		categorySub, err := handler.categories.Subscribe(ctx)
		if err != nil {
			t.Fatalf("category subscribe: %v", err)
		}
		ticketSub.Cancel()
		categorySub.Cancel()

		var out bytes.Buffer
		handler.stream(bufio.NewWriter(&out), actor, ticketSub, categorySub)
		return lastFrame(t, out.String())
	}

	if frame := subscribeAndStream(owner); !strings.Contains(frame, "Printer jam") {
		t.Errorf("owner frame lacks own ticket: %s", frame)
	}
	if frame := subscribeAndStream(stranger); frame != "[]" {
		t.Errorf("stranger frame = %s, want empty set", frame)
	}
}

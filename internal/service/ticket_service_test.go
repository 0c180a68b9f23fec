package service

import (
	"context"
	"errors"
	"strings"
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

type ticketFixture struct {
	svc     *TicketService
	mem     *store.Memory
	center  *notify.Center
	current time.Time
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	mem := store.NewMemory()
	center := notify.NewCenter(time.Minute)
	policy := retry.Policy{MaxRetries: 5, InitialDelay: time.Millisecond}.
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil })
	f := &ticketFixture{
		mem:     mem,
		center:  center,
		current: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:    repository.NewTicketRepository(mem),
		Blobs:         mem,
		Retry:         policy,
		Notifications: center,
		Logger:        zap.NewNop(),
	}).WithClock(func() time.Time { return f.current })
	return f
}

var (
	endUser = domain.Actor{ID: "user-a", Email: "a@example.com", Role: domain.RoleEndUser}
	agent   = domain.Actor{ID: "staff-1", Email: "agent@example.com", Role: domain.RoleSupportAgent}
	admin   = domain.Actor{ID: "admin-1", Email: "admin@example.com", Role: domain.RoleAdmin}
)

func validInput() TicketCreateInput {
	return TicketCreateInput{Title: "Broken printer", Description: "It beeps", CategoryID: "cat-1"}
}

func TestCreate_ValidationBlocksRemoteCall(t *testing.T) {
	f := newTicketFixture(t)
	cases := []TicketCreateInput{
		{Description: "d", CategoryID: "c"},
		{Title: "t", CategoryID: "c"},
		{Title: "t", Description: "d"},
		{Title: "   ", Description: "d", CategoryID: "c"},
	}
	for _, input := range cases {
		if _, err := f.svc.Create(context.Background(), endUser, input); !apperrors.IsValidation(err) {
			t.Errorf("Create(%+v) = %v, want validation error", input, err)
		}
	}
	if _, err := f.svc.Create(context.Background(), domain.Actor{}, validInput()); !apperrors.IsValidation(err) {
		t.Error("Create without actor should fail validation")
	}
	if got := f.mem.Mutations(); got != 0 {
		t.Errorf("store mutations = %d, want 0", got)
	}
}

func TestCreate_PersistsOpenTicketWithSystemComment(t *testing.T) {
	f := newTicketFixture(t)
	ticket, err := f.svc.Create(context.Background(), endUser, validInput())
	if err != nil {
		t.Fatalf("Create returned %v", err)
	}
	if ticket.ID == "" {
		t.Error("ticket id not assigned")
	}
	if ticket.Status != domain.StatusOpen {
		t.Errorf("status = %s, want Open", ticket.Status)
	}
	if !ticket.UpdatedAt.Equal(ticket.CreatedAt) {
		t.Errorf("updatedAt %v != createdAt %v on creation", ticket.UpdatedAt, ticket.CreatedAt)
	}
	if len(ticket.Comments) != 1 {
		t.Fatalf("comment count = %d, want 1", len(ticket.Comments))
	}
	comment := ticket.Comments[0]
	if !comment.IsSystem {
		t.Error("creation comment must be system-authored")
	}
	if want := "Ticket created by a@example.com."; comment.Text != want {
		t.Errorf("comment text = %q, want %q", comment.Text, want)
	}

	stored, err := f.svc.Get(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("Get returned %v", err)
	}
	if stored.Title != "Broken printer" || stored.Status != domain.StatusOpen {
		t.Errorf("stored ticket = %+v", stored)
	}
}

func TestCreate_AttachmentResolvedBeforeCommit(t *testing.T) {
	f := newTicketFixture(t)
	input := validInput()
	input.Attachment = &AttachmentInput{FileName: "log.txt", ContentType: "text/plain", Data: []byte("boom")}
	ticket, err := f.svc.Create(context.Background(), endUser, input)
	if err != nil {
		t.Fatalf("Create returned %v", err)
	}
	if ticket.Comments[0].AttachmentURL == "" {
		t.Error("creation comment missing resolved attachment URL")
	}
}

func TestCreate_UploadFailureAbortsCreation(t *testing.T) {
	f := newTicketFixture(t)
	f.mem.UploadErr = errors.New("storage offline")
	input := validInput()
	input.Attachment = &AttachmentInput{FileName: "log.txt", Data: []byte("boom")}
	_, err := f.svc.Create(context.Background(), endUser, input)
	if code := apperrors.ToDomainError(err).Code; code != "ATTACHMENT_UPLOAD_FAILED" {
		t.Fatalf("error code = %s, want ATTACHMENT_UPLOAD_FAILED", code)
	}
	if f.mem.Creates != 0 {
		t.Errorf("document creates = %d, want 0 after aborted upload", f.mem.Creates)
	}
}

func TestCreate_RetriesTransientFailures(t *testing.T) {
	f := newTicketFixture(t)
	f.mem.FailFor = 2
	if _, err := f.svc.Create(context.Background(), endUser, validInput()); err != nil {
		t.Fatalf("Create returned %v, want success after retries", err)
	}
	if f.mem.Creates != 3 {
		t.Errorf("create attempts = %d, want 3", f.mem.Creates)
	}
}

func TestChangeStatus_RequiresStaffRole(t *testing.T) {
	f := newTicketFixture(t)
	ticket, _ := f.svc.Create(context.Background(), endUser, validInput())
	_, err := f.svc.ChangeStatus(context.Background(), endUser, ticket.ID, "Resolved")
	if code := apperrors.ToDomainError(err).Code; code != "FORBIDDEN" {
		t.Errorf("error code = %s, want FORBIDDEN", code)
	}
}

func TestChangeStatus_AppendsExactlyOneSystemComment(t *testing.T) {
	f := newTicketFixture(t)
	ticket, _ := f.svc.Create(context.Background(), endUser, validInput())
	before := len(ticket.Comments)
	f.current = f.current.Add(time.Hour)

	updated, err := f.svc.ChangeStatus(context.Background(), agent, ticket.ID, "in progress")
	if err != nil {
		t.Fatalf("ChangeStatus returned %v", err)
	}
	if updated.Status != domain.StatusInProgress {
		t.Errorf("status = %s, want In Progress", updated.Status)
	}
	if len(updated.Comments) != before+1 {
		t.Fatalf("comment count = %d, want %d", len(updated.Comments), before+1)
	}
	last := updated.Comments[len(updated.Comments)-1]
	if !last.IsSystem {
		t.Error("audit comment must be system-authored")
	}
	if !strings.Contains(last.Text, "In Progress") {
		t.Errorf("audit comment %q does not name the new status", last.Text)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		t.Error("updatedAt went below createdAt")
	}

	// Status and audit comment land in one write.
	if f.mem.Updates != 1 {
		t.Errorf("store updates = %d, want 1", f.mem.Updates)
	}

	stored, _ := f.svc.Get(context.Background(), ticket.ID)
	if stored.Status != domain.StatusInProgress || len(stored.Comments) != before+1 {
		t.Errorf("persisted ticket out of sync: %+v", stored)
	}
}

func TestChangeStatus_AnyStatusReachableFromAnyOther(t *testing.T) {
	f := newTicketFixture(t)
	ticket, _ := f.svc.Create(context.Background(), endUser, validInput())
	for _, next := range []string{"Closed", "Open", "Resolved", "In Progress"} {
		if _, err := f.svc.ChangeStatus(context.Background(), agent, ticket.ID, next); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}
}

func TestChangeStatus_RejectsUnknownStatus(t *testing.T) {
	f := newTicketFixture(t)
	ticket, _ := f.svc.Create(context.Background(), endUser, validInput())
	if _, err := f.svc.ChangeStatus(context.Background(), agent, ticket.ID, "archived"); !apperrors.IsValidation(err) {
		t.Errorf("ChangeStatus = %v, want validation error", err)
	}
}

func TestChangeStatus_ExhaustionPreservesState(t *testing.T) {
	f := newTicketFixture(t)
	ticket, _ := f.svc.Create(context.Background(), endUser, validInput())
	f.mem.Err = errors.New("store down")

	_, err := f.svc.ChangeStatus(context.Background(), agent, ticket.ID, "Closed")
	if code := apperrors.ToDomainError(err).Code; code != "REMOTE_WRITE_FAILED" {
		t.Fatalf("error code = %s, want REMOTE_WRITE_FAILED", code)
	}

	f.mem.Err = nil
	stored, _ := f.svc.Get(context.Background(), ticket.ID)
	if stored.Status != domain.StatusOpen {
		t.Errorf("status = %s, want Open preserved after failed write", stored.Status)
	}
	if len(stored.Comments) != 1 {
		t.Errorf("comment count = %d, want 1 preserved after failed write", len(stored.Comments))
	}
}

func TestAddComment_WhitespaceIsSilentNoOp(t *testing.T) {
	f := newTicketFixture(t)
	ticket, _ := f.svc.Create(context.Background(), endUser, validInput())
	updatesBefore := f.mem.Updates

	for _, text := range []string{"", "   ", "\n\t"} {
		got, err := f.svc.AddComment(context.Background(), endUser, ticket.ID, text)
		if err != nil {
			t.Errorf("AddComment(%q) returned %v, want nil", text, err)
		}
		if got != nil {
			t.Errorf("AddComment(%q) returned a ticket, want nil no-op", text)
		}
	}
	if f.mem.Updates != updatesBefore {
		t.Errorf("store updates = %d, want %d (no call issued)", f.mem.Updates, updatesBefore)
	}
}

func TestAddComment_AppendsAndBumpsUpdatedAt(t *testing.T) {
	f := newTicketFixture(t)
	ticket, _ := f.svc.Create(context.Background(), endUser, validInput())
	f.current = f.current.Add(30 * time.Minute)

	updated, err := f.svc.AddComment(context.Background(), endUser, ticket.ID, "Any news?")
	if err != nil {
		t.Fatalf("AddComment returned %v", err)
	}
	last := updated.Comments[len(updated.Comments)-1]
	if last.IsSystem || last.Text != "Any news?" || last.CreatedBy != endUser.ID {
		t.Errorf("appended comment = %+v", last)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Errorf("updatedAt %v not after createdAt %v", updated.UpdatedAt, updated.CreatedAt)
	}
}

func TestAddComment_AdminLimitedToOwnTickets(t *testing.T) {
	f := newTicketFixture(t)
	usersTicket, _ := f.svc.Create(context.Background(), endUser, validInput())
	adminsTicket, _ := f.svc.Create(context.Background(), admin, validInput())

	if _, err := f.svc.AddComment(context.Background(), admin, usersTicket.ID, "hi"); err == nil {
		t.Error("admin reply on another actor's ticket should be forbidden")
	}
	if _, err := f.svc.AddComment(context.Background(), admin, adminsTicket.ID, "hi"); err != nil {
		t.Errorf("admin reply on own ticket returned %v", err)
	}
	if _, err := f.svc.AddComment(context.Background(), agent, usersTicket.ID, "on it"); err != nil {
		t.Errorf("agent reply returned %v", err)
	}
}

func TestGet_UnknownTicketIsNotFound(t *testing.T) {
	f := newTicketFixture(t)
	_, err := f.svc.Get(context.Background(), "missing")
	if !apperrors.IsNotFound(err) {
		t.Errorf("Get = %v, want not-found", err)
	}
}

func TestMutations_UpdatedAtNeverBelowCreatedAt(t *testing.T) {
	f := newTicketFixture(t)
	ticket, _ := f.svc.Create(context.Background(), endUser, validInput())

	// Clock skew backwards must not break monotonicity.
	f.current = f.current.Add(-time.Hour)
	updated, err := f.svc.AddComment(context.Background(), endUser, ticket.ID, "still broken")
	if err != nil {
		t.Fatalf("AddComment returned %v", err)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		t.Errorf("updatedAt %v < createdAt %v", updated.UpdatedAt, updated.CreatedAt)
	}
}

func TestNotifications_SurfaceSuccessAndFailure(t *testing.T) {
	f := newTicketFixture(t)
	ticket, _ := f.svc.Create(context.Background(), endUser, validInput())
	if got := f.center.Recent(endUser.ID); len(got) == 0 {
		t.Error("create should push a success notification")
	}

	f.mem.Err = errors.New("store down")
	_, _ = f.svc.AddComment(context.Background(), endUser, ticket.ID, "hello")
	got := f.center.Recent(endUser.ID)
	found := false
	for _, n := range got {
		if n.Severity == notify.SeverityError {
			found = true
		}
	}
	if !found {
		t.Error("failed mutation should push an error notification")
	}
}

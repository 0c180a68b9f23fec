package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/events"
	"github.com/spec-kit/helpdesk-portal/internal/notify"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
	"github.com/spec-kit/helpdesk-portal/internal/retry"
	"github.com/spec-kit/helpdesk-portal/internal/store"
	apperrors "github.com/spec-kit/helpdesk-portal/pkg/util/errorutil"
)

// CategoryService manages the admin-owned category set. Deleting a category
// never cascades: tickets keep the dangling reference and render through the
// display fallback.
type CategoryService struct {
	categories    repository.CategoryRepository
	retry         retry.Policy
	dispatcher    events.Dispatcher
	notifications *notify.Center
	logger        *zap.Logger
}

// CategoryDependencies bundles collaborators for the category service.
type CategoryDependencies struct {
	CategoryRepo  repository.CategoryRepository
	Retry         retry.Policy
	Dispatcher    events.Dispatcher
	Notifications *notify.Center
	Logger        *zap.Logger
}

// NewCategoryService constructs the service.
func NewCategoryService(deps CategoryDependencies) *CategoryService {
	return &CategoryService{
		categories:    deps.CategoryRepo,
		retry:         deps.Retry,
		dispatcher:    deps.Dispatcher,
		notifications: deps.Notifications,
		logger:        deps.Logger,
	}
}

// Create adds a category. Duplicate names are permitted.
func (s *CategoryService) Create(ctx context.Context, actor domain.Actor, name string) (*domain.Category, error) {
	if !actor.CanManageCategories() {
		return nil, apperrors.NewForbidden("category management requires an admin")
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("category name required", nil)
	}

	category := &domain.Category{Name: strings.TrimSpace(name)}
	err := s.retry.Do(ctx, "create category", func(ctx context.Context) error {
		return s.categories.Create(ctx, category)
	})
	if err != nil {
		s.pushNotification(actor, "Failed to add category.", notify.SeverityError)
		return nil, apperrors.NewRemoteWriteError(err)
	}

	s.publish(ctx, events.Event{
		Type:  events.EventCategoryCreated,
		Actor: actor,
		Payload: events.CategoryPayload{
			CategoryID: category.ID,
			Name:       category.Name,
		},
	})
	s.pushNotification(actor, "Category added!", notify.SeveritySuccess)
	return category, nil
}

// List returns all categories.
func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	return s.categories.List(ctx)
}

// Delete removes a category by id.
func (s *CategoryService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.CanManageCategories() {
		return apperrors.NewForbidden("category management requires an admin")
	}

	// The backoff treats every store error alike, so a missing id
	// exhausts the retries before surfacing as not-found.
	err := s.retry.Do(ctx, "delete category", func(ctx context.Context) error {
		return s.categories.Delete(ctx, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFound("category", map[string]any{"id": id})
	}
	if err != nil {
		s.pushNotification(actor, "Failed to delete category.", notify.SeverityError)
		return apperrors.NewRemoteWriteError(err)
	}

	s.publish(ctx, events.Event{
		Type:    events.EventCategoryDeleted,
		Actor:   actor,
		Payload: events.CategoryPayload{CategoryID: id},
	})
	s.pushNotification(actor, "Category deleted!", notify.SeveritySuccess)
	return nil
}

// Subscribe opens a live snapshot stream of the category collection.
func (s *CategoryService) Subscribe(ctx context.Context) (*store.Subscription, error) {
	return s.categories.Subscribe(ctx)
}

func (s *CategoryService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *CategoryService) pushNotification(actor domain.Actor, message string, severity notify.Severity) {
	if s.notifications == nil {
		return
	}
	s.notifications.Push(actor.ID, message, severity)
}

package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/store"
)

// CategoryRepository encapsulates category persistence.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	List(ctx context.Context) ([]domain.Category, error)
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context) (*store.Subscription, error)
}

type categoryRepository struct {
	client store.Client
}

// NewCategoryRepository instantiates repository.
func NewCategoryRepository(client store.Client) CategoryRepository {
	return &categoryRepository{client: client}
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	fields, err := store.Fields(category)
	if err != nil {
		return err
	}
	delete(fields, "id")
	id, err := r.client.Create(ctx, store.CollectionCategories, fields)
	if err != nil {
		return err
	}
	category.ID = id
	return nil
}

func (r *categoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	docs, err := r.client.List(ctx, store.CollectionCategories)
	if err != nil {
		return nil, err
	}
	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		category, err := DecodeCategory(doc)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *category)
	}
	return categories, nil
}

// DecodeCategory maps a stored document onto the domain record.
func DecodeCategory(doc store.Document) (*domain.Category, error) {
	var category domain.Category
	if err := doc.Decode(&category); err != nil {
		return nil, err
	}
	category.ID = doc.ID
	return &category, nil
}

// Delete removes the category only. Tickets referencing it keep their
// dangling id and resolve through the display fallback.
func (r *categoryRepository) Delete(ctx context.Context, id string) error {
	return r.client.Delete(ctx, store.CollectionCategories, id)
}

func (r *categoryRepository) Subscribe(ctx context.Context) (*store.Subscription, error) {
	return r.client.Subscribe(ctx, store.CollectionCategories)
}

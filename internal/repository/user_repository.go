package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/store"
)

// UserRepository persists actor records keyed by the auth subject id.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Actor, error)
	Put(ctx context.Context, actor *domain.Actor, passwordHash string) error
	FindByEmail(ctx context.Context, email string) (*domain.Actor, string, error)
}

type userRepository struct {
	client store.Client
}

// NewUserRepository instantiates repository.
func NewUserRepository(client store.Client) UserRepository {
	return &userRepository{client: client}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.Actor, error) {
	doc, err := r.client.Get(ctx, store.CollectionUsers, id)
	if err != nil {
		return nil, err
	}
	actor, err := decodeActor(doc)
	if err != nil {
		return nil, err
	}
	return actor, nil
}

func (r *userRepository) Put(ctx context.Context, actor *domain.Actor, passwordHash string) error {
	fields, err := store.Fields(actor)
	if err != nil {
		return err
	}
	delete(fields, "id")
	if passwordHash != "" {
		fields["passwordHash"] = passwordHash
	}
	return r.client.Put(ctx, store.CollectionUsers, actor.ID, fields)
}

// FindByEmail scans the users collection; the second return is the password
// hash when one is stored.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.Actor, string, error) {
	docs, err := r.client.List(ctx, store.CollectionUsers)
	if err != nil {
		return nil, "", err
	}
	for _, doc := range docs {
		actor, err := decodeActor(doc)
		if err != nil {
			return nil, "", err
		}
		if actor.Email == email {
			hash, _ := doc.Fields["passwordHash"].(string)
			return actor, hash, nil
		}
	}
	return nil, "", store.ErrNotFound
}

func decodeActor(doc store.Document) (*domain.Actor, error) {
	var actor domain.Actor
	if err := doc.Decode(&actor); err != nil {
		return nil, err
	}
	actor.ID = doc.ID
	if actor.Role == "" {
		actor.Role = domain.RoleEndUser
	}
	return &actor, nil
}

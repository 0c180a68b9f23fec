package store

import (
	"context"
	"encoding/json"
	"errors"
)

// Collection names used by the portal.
const (
	CollectionTickets    = "tickets"
	CollectionCategories = "categories"
	CollectionUsers      = "users"
)

// ErrNotFound is returned when a document id does not exist in a collection.
var ErrNotFound = errors.New("document not found")

// Document is one record in a collection, a JSON object plus its id.
type Document struct {
	ID     string
	Fields map[string]any
}

// Decode unmarshals the document fields into out via JSON round-trip.
func (d Document) Decode(out any) error {
	raw, err := json.Marshal(d.Fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Fields converts a value into the generic field map the store accepts.
func Fields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Snapshot carries the complete current contents of a collection. Every
// emission is the full set, never a diff.
type Snapshot struct {
	Collection string
	Documents  []Document
}

// Subscription is a live snapshot stream with explicit cancellation.
type Subscription struct {
	C      <-chan Snapshot
	cancel func()
}

// Cancel detaches the subscription; the channel is closed afterwards.
func (s *Subscription) Cancel() {
	if s != nil && s.cancel != nil {
		s.cancel()
	}
}

// Client is the document-store capability consumed by the portal. It is
// constructed once at process start and threaded through constructors so
// tests can substitute the in-memory implementation.
type Client interface {
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Put writes a document under a caller-assigned id, replacing any
	// existing content. Used where the id comes from outside the store
	// (user records keyed by the auth subject).
	Put(ctx context.Context, collection, id string, fields map[string]any) error
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
	Subscribe(ctx context.Context, collection string) (*Subscription, error)
}

// BlobStore uploads attachment bytes and resolves a serving URL before
// returning, so the comment referencing the attachment never commits with a
// pending link.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Open(ctx context.Context, key string) ([]byte, string, error)
}

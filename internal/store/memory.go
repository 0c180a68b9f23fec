package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
)

// Memory is an in-process Client and BlobStore used by tests and local
// development. Snapshots are emitted synchronously on every mutation so tests
// can feed and observe deterministic snapshot sequences without a network.
type Memory struct {
	mu          sync.Mutex
	collections map[string][]Document
	blobs       map[string]memoryBlob
	hub         *hub

	// Err, when set, fails every mutation; FailFor fails just the next N
	// mutations before clearing. Reads are never affected.
	Err     error
	FailFor int

	// UploadErr, when set, fails blob uploads.
	UploadErr error

	Creates int
	Updates int
	Deletes int
	Uploads int

	nextID int
}

type memoryBlob struct {
	data        []byte
	contentType string
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string][]Document),
		blobs:       make(map[string]memoryBlob),
		hub:         newHub(),
	}
}

// ErrTransient is the failure injected by FailFor.
var ErrTransient = errors.New("transient store failure")

func (m *Memory) mutationError() error {
	if m.Err != nil {
		return m.Err
	}
	if m.FailFor > 0 {
		m.FailFor--
		return ErrTransient
	}
	return nil
}

// Create inserts a document and returns a deterministic sequential id.
func (m *Memory) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	m.mu.Lock()
	m.Creates++
	if err := m.mutationError(); err != nil {
		m.mu.Unlock()
		return "", err
	}
	m.nextID++
	id := "doc-" + strconv.Itoa(m.nextID)
	m.collections[collection] = append(m.collections[collection], Document{ID: id, Fields: jsonClone(fields)})
	snapshot := m.snapshotLocked(collection)
	m.mu.Unlock()

	m.hub.broadcast(snapshot)
	return id, nil
}

// Put writes a document under a caller-assigned id, replacing prior content.
func (m *Memory) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	m.Creates++
	if err := m.mutationError(); err != nil {
		m.mu.Unlock()
		return err
	}
	docs := m.collections[collection]
	replaced := false
	for i := range docs {
		if docs[i].ID == id {
			docs[i].Fields = jsonClone(fields)
			replaced = true
			break
		}
	}
	if !replaced {
		m.collections[collection] = append(docs, Document{ID: id, Fields: jsonClone(fields)})
	}
	snapshot := m.snapshotLocked(collection)
	m.mu.Unlock()

	m.hub.broadcast(snapshot)
	return nil
}

// Update shallow-merges fields into an existing document.
func (m *Memory) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	m.Updates++
	if err := m.mutationError(); err != nil {
		m.mu.Unlock()
		return err
	}
	docs := m.collections[collection]
	found := false
	for i := range docs {
		if docs[i].ID == id {
			merged := jsonClone(docs[i].Fields)
			for key, value := range jsonClone(fields) {
				merged[key] = value
			}
			docs[i].Fields = merged
			found = true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return ErrNotFound
	}
	snapshot := m.snapshotLocked(collection)
	m.mu.Unlock()

	m.hub.broadcast(snapshot)
	return nil
}

// Delete removes a document.
func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	m.Deletes++
	if err := m.mutationError(); err != nil {
		m.mu.Unlock()
		return err
	}
	docs := m.collections[collection]
	kept := docs[:0]
	found := false
	for _, doc := range docs {
		if doc.ID == id {
			found = true
			continue
		}
		kept = append(kept, doc)
	}
	if !found {
		m.mu.Unlock()
		return ErrNotFound
	}
	m.collections[collection] = kept
	snapshot := m.snapshotLocked(collection)
	m.mu.Unlock()

	m.hub.broadcast(snapshot)
	return nil
}

// Get fetches a single document.
func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.collections[collection] {
		if doc.ID == id {
			return Document{ID: doc.ID, Fields: jsonClone(doc.Fields)}, nil
		}
	}
	return Document{}, ErrNotFound
}

// List returns the collection in insertion order.
func (m *Memory) List(ctx context.Context, collection string) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(collection).Documents, nil
}

// Subscribe emits the current snapshot immediately, then one snapshot per
// mutation.
func (m *Memory) Subscribe(ctx context.Context, collection string) (*Subscription, error) {
	m.mu.Lock()
	snapshot := m.snapshotLocked(collection)
	m.mu.Unlock()

	ch, cancel := m.hub.subscribe(collection)
	ch <- snapshot
	return &Subscription{C: ch, cancel: cancel}, nil
}

// Upload stores blob bytes under an opaque key.
func (m *Memory) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Uploads++
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	m.blobs[key] = memoryBlob{data: append([]byte(nil), data...), contentType: contentType}
	return "memory://blobs/" + key, nil
}

// Open returns previously uploaded blob bytes.
func (m *Memory) Open(ctx context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return append([]byte(nil), blob.data...), blob.contentType, nil
}

// Mutations returns the total count of mutation calls issued to the store.
func (m *Memory) Mutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Creates + m.Updates + m.Deletes
}

func (m *Memory) snapshotLocked(collection string) Snapshot {
	docs := make([]Document, 0, len(m.collections[collection]))
	for _, doc := range m.collections[collection] {
		docs = append(docs, Document{ID: doc.ID, Fields: jsonClone(doc.Fields)})
	}
	return Snapshot{Collection: collection, Documents: docs}
}

func jsonClone(fields map[string]any) map[string]any {
	raw, err := json.Marshal(fields)
	if err != nil {
		return map[string]any{}
	}
	cloned := map[string]any{}
	_ = json.Unmarshal(raw, &cloned)
	return cloned
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-portal/internal/config"
)

// NewPool establishes a pgx connection pool from configuration.
func NewPool(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, errors.New("POSTGRES_DSN not provided")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres")
	return pool, nil
}

// Postgres implements Client over a documents table holding one JSONB object
// per record. Partial updates are a shallow JSONB merge, so fields not named
// in the call are never clobbered.
type Postgres struct {
	pool   *pgxpool.Pool
	feed   *ChangeFeed
	hub    *hub
	logger *zap.Logger
}

// NewPostgres wires the document store to its pool and change feed. The feed
// may be nil; snapshots then propagate only within this process.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, feed *ChangeFeed, logger *zap.Logger) *Postgres {
	p := &Postgres{
		pool:   pool,
		feed:   feed,
		hub:    newHub(),
		logger: logger,
	}
	if feed != nil {
		feed.Listen(ctx, p.refresh)
	}
	return p
}

// Ping verifies database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Create inserts a new document and returns its assigned id.
func (p *Postgres) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	const query = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`
	if _, err := p.pool.Exec(ctx, query, collection, id, data); err != nil {
		return "", err
	}
	p.changed(ctx, collection)
	return id, nil
}

// Put writes a document under a caller-assigned id, replacing prior content.
func (p *Postgres) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	const query = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
                   ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`
	if _, err := p.pool.Exec(ctx, query, collection, id, data); err != nil {
		return err
	}
	p.changed(ctx, collection)
	return nil
}

// Update merges the named fields into an existing document.
func (p *Postgres) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	const query = `UPDATE documents SET data = data || $3::jsonb, updated_at = NOW()
                   WHERE collection = $1 AND id = $2`
	cmd, err := p.pool.Exec(ctx, query, collection, id, data)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	p.changed(ctx, collection)
	return nil
}

// Delete removes a document.
func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	const query = `DELETE FROM documents WHERE collection = $1 AND id = $2`
	cmd, err := p.pool.Exec(ctx, query, collection, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	p.changed(ctx, collection)
	return nil
}

// Get fetches a single document.
func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	const query = `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	var raw []byte
	if err := p.pool.QueryRow(ctx, query, collection, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Document{}, err
	}
	return Document{ID: id, Fields: fields}, nil
}

// List returns the full collection in insertion order.
func (p *Postgres) List(ctx context.Context, collection string) ([]Document, error) {
	const query = `SELECT id, data FROM documents WHERE collection = $1 ORDER BY created_at, id`
	rows, err := p.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		fields := map[string]any{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	return docs, rows.Err()
}

// Subscribe delivers the current collection immediately, then a fresh full
// snapshot after every observed change.
func (p *Postgres) Subscribe(ctx context.Context, collection string) (*Subscription, error) {
	docs, err := p.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	ch, cancel := p.hub.subscribe(collection)
	ch <- Snapshot{Collection: collection, Documents: docs}
	return &Subscription{C: ch, cancel: cancel}, nil
}

// changed fans the change out locally and, when a feed is attached, to the
// other portal instances.
func (p *Postgres) changed(ctx context.Context, collection string) {
	p.refresh(ctx, collection)
	if p.feed != nil {
		p.feed.Publish(ctx, collection)
	}
}

func (p *Postgres) refresh(ctx context.Context, collection string) {
	if !p.hub.hasSubscribers(collection) {
		return
	}
	docs, err := p.List(ctx, collection)
	if err != nil {
		p.logger.Warn("snapshot refresh failed", zap.String("collection", collection), zap.Error(err))
		return
	}
	p.hub.broadcast(Snapshot{Collection: collection, Documents: docs})
}

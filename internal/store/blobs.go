package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBlobs stores attachment bytes in a blobs table and resolves public
// URLs under the portal's /blobs route.
type PostgresBlobs struct {
	pool    *pgxpool.Pool
	baseURL string
}

// NewPostgresBlobs constructs the blob store.
func NewPostgresBlobs(pool *pgxpool.Pool, publicBaseURL string) *PostgresBlobs {
	return &PostgresBlobs{pool: pool, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Upload writes the blob and returns its resolved URL. The write completes
// before the URL is handed back, so callers never commit a pending link.
func (b *PostgresBlobs) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty blob")
	}
	const query = `INSERT INTO blobs (key, content_type, data) VALUES ($1, $2, $3)`
	if _, err := b.pool.Exec(ctx, query, key, contentType, data); err != nil {
		return "", err
	}
	return b.baseURL + "/blobs/" + key, nil
}

// Open returns the blob bytes and content type for serving.
func (b *PostgresBlobs) Open(ctx context.Context, key string) ([]byte, string, error) {
	const query = `SELECT data, content_type FROM blobs WHERE key = $1`
	var (
		data        []byte
		contentType string
	)
	if err := b.pool.QueryRow(ctx, query, key).Scan(&data, &contentType); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	return data, contentType, nil
}

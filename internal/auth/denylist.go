package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistPrefix = "helpdesk:signed-out:"

// Denylist revokes issued tokens at sign-out. Entries expire with the token,
// so the set never grows past the live token population.
type Denylist struct {
	client *redis.Client
}

// NewDenylist wraps the shared redis client. A nil client disables
// revocation checks (every token stays valid until expiry).
func NewDenylist(client *redis.Client) *Denylist {
	return &Denylist{client: client}
}

// Revoke marks the token id as signed out until the token would expire.
func (d *Denylist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if d == nil || d.client == nil || tokenID == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, denylistPrefix+tokenID, "1", ttl).Err()
}

// Revoked reports whether the token id was signed out.
func (d *Denylist) Revoked(ctx context.Context, tokenID string) bool {
	if d == nil || d.client == nil || tokenID == "" {
		return false
	}
	exists, err := d.client.Exists(ctx, denylistPrefix+tokenID).Result()
	if err != nil {
		// redis errors read as not revoked
		return false
	}
	return exists > 0
}

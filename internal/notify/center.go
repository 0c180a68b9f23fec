package notify

import (
	"sync"
	"time"
)

// Severity classifies a transient notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is a short-lived, user-visible message. Notifications
// auto-dismiss: once expired they are pruned on the next read.
type Notification struct {
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Center collects transient notifications per actor. No notification is ever
// fatal to the process; the center is the single surfacing point for
// non-validation errors.
type Center struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string][]Notification
	now     func() time.Time
}

// NewCenter builds a notification center with the given lifetime.
func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &Center{
		ttl:     ttl,
		pending: make(map[string][]Notification),
		now:     time.Now,
	}
}

// WithClock substitutes the time source for deterministic tests.
func (c *Center) WithClock(now func() time.Time) *Center {
	c.now = now
	return c
}

// Push records a notification for the actor.
func (c *Center) Push(actorID, message string, severity Severity) {
	if actorID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	created := c.now()
	c.pending[actorID] = append(c.pending[actorID], Notification{
		Message:   message,
		Severity:  severity,
		CreatedAt: created,
		ExpiresAt: created.Add(c.ttl),
	})
}

// Recent returns the actor's live notifications, pruning expired ones.
func (c *Center) Recent(actorID string) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	live := []Notification{}
	for _, n := range c.pending[actorID] {
		if n.ExpiresAt.After(now) {
			live = append(live, n)
		}
	}
	if len(live) == 0 {
		delete(c.pending, actorID)
	} else {
		c.pending[actorID] = live
	}
	return live
}

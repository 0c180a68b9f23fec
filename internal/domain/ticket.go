package domain

import "time"

// Ticket is the aggregate for a filed support request. JSON tags mirror the
// persisted document fields so records round-trip verbatim through the store.
type Ticket struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Status      Status    `json:"status"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Comments    []Comment `json:"comments"`
}

// Comment is one entry in a ticket's append-only conversation log. Comments
// are never edited or removed once committed.
type Comment struct {
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"`
	IsSystem      bool      `json:"isSystem"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
}

// CommentCount returns the conversation length; nil-safe for sorting.
func (t *Ticket) CommentCount() int {
	if t == nil {
		return 0
	}
	return len(t.Comments)
}

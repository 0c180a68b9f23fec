package dto

import (
	"time"
)

// CreateTicketRequest payload. Attachments arrive out of band as multipart
// form data, never in this JSON body.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Text string `json:"text"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status string `json:"status"`
}

// CommentResponse is one entry of the conversation log.
type CommentResponse struct {
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"`
	IsSystem      bool      `json:"isSystem"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
}

// TicketSummary is the list row: no comment bodies, just the count.
type TicketSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	CategoryName string    `json:"categoryName"`
	Status       string    `json:"status"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	CommentCount int       `json:"commentCount"`
}

// TicketDetailResponse provides full ticket info including the conversation.
type TicketDetailResponse struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Category     string            `json:"category"`
	CategoryName string            `json:"categoryName"`
	Status       string            `json:"status"`
	CreatedBy    string            `json:"createdBy"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	Comments     []CommentResponse `json:"comments"`
}

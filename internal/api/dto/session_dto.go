package dto

import "time"

// CredentialsRequest payload for register and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ActorResponse describes the signed-in identity.
type ActorResponse struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// SessionResponse is an issued login.
type SessionResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      ActorResponse `json:"user"`
}

// CreateCategoryRequest payload.
type CreateCategoryRequest struct {
	Name string `json:"name"`
}

// CategoryResponse is one selectable ticket category.
type CategoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

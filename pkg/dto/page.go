package dto

import (
	"time"

	"github.com/google/uuid"
)

type PageResponse struct {
	ID                    uuid.UUID  `json:"id"`
	Slug                  string     `json:"slug"`
	Title                 string     `json:"title"`
	Body                  string     `json:"body"`
	HeaderImageURL        *string    `json:"header_image_url,omitempty"`
	Tags                  []string   `json:"tags"`
	AuthorID              uuid.UUID  `json:"author_id"`
	AuthorDisplayName     string     `json:"author_display_name"`
	AuthorAvatarURL       *string    `json:"author_avatar_url,omitempty"`
	LastEditorID          *uuid.UUID `json:"last_editor_id,omitempty"`
	LastEditorDisplayName *string    `json:"last_editor_display_name,omitempty"`
	LastEditorAvatarURL   *string    `json:"last_editor_avatar_url,omitempty"`
	Status                string     `json:"status"`
	ViewCount             int64      `json:"view_count"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

type CreatePageRequest struct {
	Title          string   `json:"title"`
	Body           string   `json:"body"`
	Tags           []string `json:"tags"`
	HeaderImageURL *string  `json:"header_image_url,omitempty"`
}

// UpdatePageRequest leaves nil fields unchanged.
type UpdatePageRequest struct {
	Title          *string  `json:"title,omitempty"`
	Body           *string  `json:"body,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	HeaderImageURL *string  `json:"header_image_url,omitempty"`
}

type ViewCountResponse struct {
	ViewCount int64 `json:"view_count"`
}

type PermissionsResponse struct {
	Role    string   `json:"role"`
	Actions []string `json:"actions"`
}

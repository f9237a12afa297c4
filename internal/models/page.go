package models

import (
	"time"

	"github.com/google/uuid"
)

type PageStatus string

const (
	PageStatusDraft     PageStatus = "draft"
	PageStatusPublished PageStatus = "published"
)

// Page is a wiki content entry. Author and last-editor names and avatars are
// denormalised copies of the corresponding profile records.
type Page struct {
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
	Status                PageStatus `json:"status"`
	ViewCount             int64      `json:"view_count"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (p *Page) Published() bool {
	return p.Status == PageStatusPublished
}

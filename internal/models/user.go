package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the profile record mirroring an account's identity and role.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SameIdentity reports whether the denormalised fields copied onto content are unchanged.
func (u *User) SameIdentity(other *User) bool {
	return u.DisplayName == other.DisplayName && stringPtrEqual(u.AvatarURL, other.AvatarURL)
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

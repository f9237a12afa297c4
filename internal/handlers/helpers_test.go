package handlers

import (
	"time"

	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/google/uuid"
)

func newTestUser(role models.Role) *models.User {
	avatar := "https://cdn.example.com/avatars/a.png"
	return &models.User{
		ID:          uuid.New(),
		Email:       "aria@example.com",
		DisplayName: "Aria",
		AvatarURL:   &avatar,
		Role:        role,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func newTestAccount() *models.Account {
	return &models.Account{
		ID:          uuid.New(),
		Email:       "aria@example.com",
		DisplayName: "Aria",
		Provider:    models.ProviderPassword,
		CreatedAt:   time.Now(),
	}
}

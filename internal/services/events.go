package services

import (
	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/google/uuid"
)

// LifecycleEvents receives the notifications that drive the server-side
// triggers. Implementations must not block the caller for long.
type LifecycleEvents interface {
	AccountCreated(account *models.Account)
	AccountDeleted(accountID uuid.UUID)
	ProfileUpdated(before, after *models.User)
}

type NopEvents struct{}

func (NopEvents) AccountCreated(*models.Account) {}
func (NopEvents) AccountDeleted(uuid.UUID) {}
func (NopEvents) ProfileUpdated(before, after *models.User) {}

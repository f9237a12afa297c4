package handlers

import (
	"context"
	"io"
	"time"

	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/oauth"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/dimitrije/lorewiki-api/internal/sse"
	"github.com/google/uuid"
)

// AccountServiceInterface defines the methods used by handlers from AccountService
type AccountServiceInterface interface {
	CreateWithPassword(ctx context.Context, email, password, displayName string) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) (*models.Account, error)
	FindOrCreateFromOAuth(ctx context.Context, info *oauth.UserInfo) (*models.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProfileServiceInterface defines the methods used by handlers from ProfileService
type ProfileServiceInterface interface {
	Create(ctx context.Context, id uuid.UUID, email, displayName string, avatarURL *string) (*models.User, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByDisplayName(ctx context.Context, displayName string) (*models.User, error)
	UpdateIdentity(ctx context.Context, id uuid.UUID, displayName, avatarURL *string) (*models.User, error)
}

// ClaimStoreInterface defines the methods used by handlers from ClaimStore
type ClaimStoreInterface interface {
	Role(ctx context.Context, accountID uuid.UUID) (models.Role, error)
}

// TokenServiceInterface defines the methods used by handlers from TokenService
type TokenServiceInterface interface {
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, oldHash, newHash string, expiresAt time.Time) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error
}

// JWTServiceInterface defines the methods used by handlers from JWTService
type JWTServiceInterface interface {
	GenerateTokenPair(userID uuid.UUID, email string, role models.Role) (*services.TokenPair, error)
	ValidateRefreshToken(token string) (uuid.UUID, error)
	RefreshExpiry() time.Duration
}

// PrivilegedServiceInterface defines the methods used by handlers from PrivilegedService
type PrivilegedServiceInterface interface {
	SetRole(ctx context.Context, callerID uuid.UUID, targetID, newRole string) (*models.User, error)
	MakeFirstAdmin(ctx context.Context, callerID uuid.UUID) (*models.User, error)
	SyncUsers(ctx context.Context, callerID uuid.UUID) (int64, error)
	ListProfiles(ctx context.Context, callerID uuid.UUID) ([]models.User, error)
	DeleteProfile(ctx context.Context, callerID uuid.UUID, targetID string) error
	ResetViewCounts(ctx context.Context, callerID uuid.UUID) (int64, error)
}

// PageServiceInterface defines the methods used by handlers from PageService
type PageServiceInterface interface {
	List(ctx context.Context, f services.PageFilter) ([]models.Page, error)
	GetBySlug(ctx context.Context, slug string) (*models.Page, error)
	Create(ctx context.Context, author *models.User, in services.PageInput) (*models.Page, error)
	Update(ctx context.Context, slug string, editor *models.User, in services.PageInput) (*models.Page, error)
	SetStatus(ctx context.Context, slug string, status models.PageStatus) (*models.Page, error)
	Delete(ctx context.Context, slug string) error
	IncrementViews(ctx context.Context, slug string) (int64, error)
}

// ImageStoreInterface defines the methods used by handlers from BlobStore
type ImageStoreInterface interface {
	UploadImage(ctx context.Context, prefix string, data []byte, contentType string) (string, error)
}

// AssistantServiceInterface defines the methods used by handlers from AssistantService
type AssistantServiceInterface interface {
	Generate(ctx context.Context, prompt string, w io.Writer, flush func() error) (int, error)
}

// SSEHubInterface defines the methods used by handlers from the Hub
type SSEHubInterface interface {
	Register(client *sse.Client)
	Unregister(client *sse.Client)
}

package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dimitrije/lorewiki-api/internal/database"
	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/oauth"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db      *database.DB
	counter int
}

// NewFixtures creates a new fixtures factory
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

// CreateAccount inserts an account row directly, without emitting lifecycle
// events, so tests control whether a profile exists.
func (f *Fixtures) CreateAccount(t *testing.T, opts ...AccountOption) *models.Account {
	t.Helper()
	f.counter++

	account := &models.Account{
		Email:       fmt.Sprintf("user%d@example.com", f.counter),
		DisplayName: fmt.Sprintf("Chronicler %d", f.counter),
		Provider:    models.ProviderGitHub,
		ProviderID:  fmt.Sprintf("provider-%d", f.counter),
	}

	for _, opt := range opts {
		opt(account)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO accounts (email, display_name, avatar_url, provider, provider_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, account.Email, account.DisplayName, account.AvatarURL, account.Provider, account.ProviderID).Scan(
		&account.ID, &account.CreatedAt,
	)
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	return account
}

// AccountOption configures a test account
type AccountOption func(*models.Account)

func WithEmail(email string) AccountOption {
	return func(a *models.Account) {
		a.Email = email
	}
}

func WithDisplayName(name string) AccountOption {
	return func(a *models.Account) {
		a.DisplayName = name
	}
}

func WithAvatar(url string) AccountOption {
	return func(a *models.Account) {
		a.AvatarURL = &url
	}
}

// CreateProfile inserts the profile record for account with the given role.
func (f *Fixtures) CreateProfile(t *testing.T, account *models.Account, role models.Role) *models.User {
	t.Helper()
	return f.insertProfile(t, account.ID, account.Email, account.DisplayName, account.AvatarURL, role)
}

// CreateOrphanProfile inserts a profile record with no account behind it.
func (f *Fixtures) CreateOrphanProfile(t *testing.T) *models.User {
	t.Helper()
	f.counter++
	return f.insertProfile(t, uuid.New(), fmt.Sprintf("gone%d@example.com", f.counter),
		fmt.Sprintf("Departed %d", f.counter), nil, models.RoleViewer)
}

func (f *Fixtures) insertProfile(t *testing.T, id uuid.UUID, email, name string, avatar *string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{ID: id, Email: email, DisplayName: name, AvatarURL: avatar, Role: role}

	err := f.db.Pool.QueryRow(context.Background(), `
		INSERT INTO users (id, email, display_name, avatar_url, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, user.ID, user.Email, user.DisplayName, user.AvatarURL, string(role)).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	return user
}

// CreatePage stores a page authored by author through PageService so slugs
// and denormalised fields match production.
func (f *Fixtures) CreatePage(t *testing.T, author *models.User, title string, status models.PageStatus) *models.Page {
	t.Helper()
	svc := services.NewPageService(f.db)
	ctx := context.Background()

	body := "Lore about " + title
	page, err := svc.Create(ctx, author, services.PageInput{Title: &title, Body: &body, Tags: []string{"lore"}})
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	if status != models.PageStatusDraft {
		page, err = svc.SetStatus(ctx, page.Slug, status)
		if err != nil {
			t.Fatalf("failed to set page status: %v", err)
		}
	}
	return page
}

// CreateRefreshToken creates a test refresh token
func (f *Fixtures) CreateRefreshToken(t *testing.T, userID uuid.UUID, tokenHash string, expiresAt time.Time) {
	t.Helper()
	ctx := context.Background()

	_, err := f.db.Pool.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, userID, tokenHash, expiresAt)
	if err != nil {
		t.Fatalf("failed to create refresh token: %v", err)
	}
}

// NewClaimStore returns a claim store backed by an in-process redis.
func NewClaimStore(t *testing.T) (*services.ClaimStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return services.NewClaimStore(client), mr
}

// OAuthUserInfo creates test OAuth user info
func OAuthUserInfo(email, name, provider, id string) *oauth.UserInfo {
	return &oauth.UserInfo{
		Email:       email,
		DisplayName: name,
		AvatarURL:   "https://example.com/avatar.png",
		ProviderID:  id,
		Provider:    provider,
	}
}

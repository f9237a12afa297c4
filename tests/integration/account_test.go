package integration

import (
	"context"
	"testing"

	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/dimitrije/lorewiki-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountService_Integration_PasswordRoundTrip(t *testing.T) {
	tdb := setupTest(t)
	svc := services.NewAccountService(tdb.DB, nil, services.NopEvents{})
	ctx := context.Background()

	created, err := svc.CreateWithPassword(ctx, "Bard@Example.com", "lute-and-song", "Bard")
	require.NoError(t, err)
	assert.Equal(t, "bard@example.com", created.Email)
	assert.Equal(t, models.ProviderPassword, created.Provider)

	got, err := svc.Authenticate(ctx, "bard@example.com", "lute-and-song")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Authenticate(ctx, "bard@example.com", "wrong-password")
	assert.Equal(t, services.KindUnauthenticated, services.KindOf(err))
}

func TestAccountService_Integration_DuplicateEmail(t *testing.T) {
	tdb := setupTest(t)
	svc := services.NewAccountService(tdb.DB, nil, services.NopEvents{})
	ctx := context.Background()

	_, err := svc.CreateWithPassword(ctx, "twin@example.com", "first-password", "Twin")
	require.NoError(t, err)

	_, err = svc.CreateWithPassword(ctx, "twin@example.com", "second-password", "Twin Two")
	assert.Equal(t, services.KindAlreadyExists, services.KindOf(err))
}

func TestAccountService_Integration_FindOrCreateFromOAuth(t *testing.T) {
	tdb := setupTest(t)
	svc := services.NewAccountService(tdb.DB, nil, services.NopEvents{})
	ctx := context.Background()

	info := testutil.OAuthUserInfo("Scout@Example.com", "Scout", "gitlab", "gl-42")

	first, err := svc.FindOrCreateFromOAuth(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, "scout@example.com", first.Email)
	require.NotNil(t, first.AvatarURL)

	second, err := svc.FindOrCreateFromOAuth(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestProfileService_Integration_CreateIsIdempotent(t *testing.T) {
	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	svc := services.NewProfileService(tdb.DB, services.NopEvents{})
	ctx := context.Background()

	account := fixtures.CreateAccount(t)

	user, created, err := svc.Create(ctx, account.ID, account.Email, account.DisplayName, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.RoleViewer, user.Role)

	again, created, err := svc.Create(ctx, account.ID, account.Email, "Someone Else", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, account.DisplayName, again.DisplayName)

	byName, err := svc.GetByDisplayName(ctx, account.DisplayName)
	require.NoError(t, err)
	assert.Equal(t, account.ID, byName.ID)
}

func TestPageService_Integration_DraftsHiddenFromViewers(t *testing.T) {
	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	svc := services.NewPageService(tdb.DB)
	ctx := context.Background()

	author := fixtures.CreateProfile(t, fixtures.CreateAccount(t), models.RoleEditor)
	fixtures.CreatePage(t, author, "Published Lore", models.PageStatusPublished)
	fixtures.CreatePage(t, author, "Secret Draft", models.PageStatusDraft)

	public, err := svc.List(ctx, services.PageFilter{})
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "published-lore", public[0].Slug)

	all, err := svc.List(ctx, services.PageFilter{IncludeDrafts: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	search, err := svc.List(ctx, services.PageFilter{IncludeDrafts: true, Query: "secret", Tag: "LORE"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "secret-draft", search[0].Slug)
}

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/dimitrije/lorewiki-api/internal/triggers"
	"github.com/dimitrije/lorewiki-api/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stack struct {
	tdb        *testutil.TestDB
	fixtures   *testutil.Fixtures
	claims     *services.ClaimStore
	accounts   *services.AccountService
	profiles   *services.ProfileService
	pages      *services.PageService
	privileged *services.PrivilegedService
}

// setupStack wires the services the way the server does, with the trigger
// dispatcher running until the test ends.
func setupStack(t *testing.T) *stack {
	t.Helper()
	tdb := setupTest(t)
	claims, _ := testutil.NewClaimStore(t)

	dispatcher := triggers.New(64, zap.NewNop(), nil)
	s := &stack{
		tdb:      tdb,
		fixtures: testutil.NewFixtures(tdb.DB),
		claims:   claims,
		profiles: services.NewProfileService(tdb.DB, dispatcher),
		accounts: services.NewAccountService(tdb.DB, claims, dispatcher),
		pages:    services.NewPageService(tdb.DB),
	}
	s.privileged = services.NewPrivilegedService(claims, s.profiles, s.accounts, s.pages, nil, zap.NewNop())
	dispatcher.Register(triggers.Handlers{Profiles: s.profiles, Propagator: s.pages})

	ctx, cancel := context.WithCancel(context.Background())
	go dispatcher.Run(ctx)
	t.Cleanup(cancel)
	return s
}

func (s *stack) profileExists(id uuid.UUID) bool {
	_, err := s.profiles.GetByID(context.Background(), id)
	return err == nil
}

func TestLifecycle_Integration_AccountCreationProvisionsViewer(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	account, err := s.accounts.CreateWithPassword(ctx, "scribe@example.com", "correct-horse", "Scribe")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.profileExists(account.ID) }, 5*time.Second, 20*time.Millisecond)

	profile, err := s.profiles.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, profile.Role)
	assert.Equal(t, "Scribe", profile.DisplayName)
	assert.Equal(t, "scribe@example.com", profile.Email)
}

func TestLifecycle_Integration_AccountDeletionRemovesProfile(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	account, err := s.accounts.FindOrCreateFromOAuth(ctx, testutil.OAuthUserInfo("ranger@example.com", "Ranger", "github", "gh-1"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.profileExists(account.ID) }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, s.accounts.Delete(ctx, account.ID))

	require.Eventually(t, func() bool { return !s.profileExists(account.ID) }, 5*time.Second, 20*time.Millisecond)
}

func TestLifecycle_Integration_RenamePropagatesToPages(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	author := s.fixtures.CreateProfile(t, s.fixtures.CreateAccount(t, testutil.WithDisplayName("Old Name")), models.RoleEditor)
	editor := s.fixtures.CreateProfile(t, s.fixtures.CreateAccount(t), models.RoleEditor)

	authored := s.fixtures.CreatePage(t, author, "Dragons of the North", models.PageStatusPublished)
	other := s.fixtures.CreatePage(t, editor, "Elven Cities", models.PageStatusDraft)

	body := "Revised by the old name"
	_, err := s.pages.Update(ctx, other.Slug, author, services.PageInput{Body: &body})
	require.NoError(t, err)

	newName := "New Name"
	_, err = s.profiles.UpdateIdentity(ctx, author.ID, &newName, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		a, err := s.pages.GetBySlug(ctx, authored.Slug)
		if err != nil || a.AuthorDisplayName != newName {
			return false
		}
		e, err := s.pages.GetBySlug(ctx, other.Slug)
		return err == nil && e.LastEditorDisplayName != nil && *e.LastEditorDisplayName == newName
	}, 5*time.Second, 20*time.Millisecond)

	untouched, err := s.pages.GetBySlug(ctx, other.Slug)
	require.NoError(t, err)
	assert.Equal(t, editor.DisplayName, untouched.AuthorDisplayName)
}

func TestPrivileged_Integration_FirstAdminOnlyOnce(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	first := s.fixtures.CreateAccount(t)
	second := s.fixtures.CreateAccount(t)

	admin, err := s.privileged.MakeFirstAdmin(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	role, err := s.claims.Role(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)

	_, err = s.privileged.MakeFirstAdmin(ctx, second.ID)
	assert.Equal(t, services.KindAlreadyExists, services.KindOf(err))
	_, err = s.privileged.MakeFirstAdmin(ctx, first.ID)
	assert.Equal(t, services.KindAlreadyExists, services.KindOf(err))
}

func TestPrivileged_Integration_SetRoleWritesBothStores(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	adminAccount := s.fixtures.CreateAccount(t)
	_, err := s.privileged.MakeFirstAdmin(ctx, adminAccount.ID)
	require.NoError(t, err)

	target := s.fixtures.CreateAccount(t)
	s.fixtures.CreateProfile(t, target, models.RoleViewer)

	updated, err := s.privileged.SetRole(ctx, adminAccount.ID, target.ID.String(), "Editor")
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, updated.Role)

	role, err := s.claims.Role(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, role)
}

func TestPrivileged_Integration_SetRoleByNonAdminChangesNothing(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	caller := s.fixtures.CreateAccount(t)
	s.fixtures.CreateProfile(t, caller, models.RoleEditor)
	target := s.fixtures.CreateAccount(t)
	s.fixtures.CreateProfile(t, target, models.RoleViewer)

	_, err := s.privileged.SetRole(ctx, caller.ID, target.ID.String(), "Admin")
	assert.Equal(t, services.KindPermissionDenied, services.KindOf(err))

	profile, err := s.profiles.GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, profile.Role)
	role, err := s.claims.Role(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, role)
}

func TestPrivileged_Integration_SyncUsersRemovesOnlyOrphans(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	adminAccount := s.fixtures.CreateAccount(t)
	_, err := s.privileged.MakeFirstAdmin(ctx, adminAccount.ID)
	require.NoError(t, err)

	live := s.fixtures.CreateProfile(t, s.fixtures.CreateAccount(t), models.RoleViewer)
	orphans := []*models.User{s.fixtures.CreateOrphanProfile(t), s.fixtures.CreateOrphanProfile(t)}

	removed, err := s.privileged.SyncUsers(ctx, adminAccount.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	assert.True(t, s.profileExists(live.ID))
	assert.True(t, s.profileExists(adminAccount.ID))
	for _, o := range orphans {
		assert.False(t, s.profileExists(o.ID))
	}

	removed, err = s.privileged.SyncUsers(ctx, adminAccount.ID)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestProfileService_Integration_DeleteBatchSparesLiveAccounts(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	live := s.fixtures.CreateProfile(t, s.fixtures.CreateAccount(t), models.RoleViewer)
	orphan := s.fixtures.CreateOrphanProfile(t)

	// Both ids are handed over as if a stale snapshot called them orphans.
	removed, err := s.profiles.DeleteBatch(ctx, []uuid.UUID{live.ID, orphan.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.True(t, s.profileExists(live.ID))
	assert.False(t, s.profileExists(orphan.ID))
}

func TestPrivileged_Integration_ResetViewCounts(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	author := s.fixtures.CreateProfile(t, s.fixtures.CreateAccount(t), models.RoleEditor)
	page := s.fixtures.CreatePage(t, author, "Harbor Towns", models.PageStatusPublished)
	for range 3 {
		_, err := s.pages.IncrementViews(ctx, page.Slug)
		require.NoError(t, err)
	}

	n, err := s.privileged.ResetAllViewCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.pages.GetBySlug(ctx, page.Slug)
	require.NoError(t, err)
	assert.Zero(t, got.ViewCount)
}

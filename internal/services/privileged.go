package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/lorewiki-api/internal/metrics"
	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const bootstrapLockTTL = 10 * time.Second

// PrivilegedService implements the admin-only operations. Callers are always
// authorised against the claim store, never against their token.
type PrivilegedService struct {
	claims   *ClaimStore
	profiles *ProfileService
	accounts *AccountService
	pages    *PageService
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewPrivilegedService(
	claims *ClaimStore,
	profiles *ProfileService,
	accounts *AccountService,
	pages *PageService,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PrivilegedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrivilegedService{
		claims:   claims,
		profiles: profiles,
		accounts: accounts,
		pages:    pages,
		metrics:  m,
		logger:   logger,
	}
}

// finish classifies err, logs unexpected failures and records the outcome.
func (s *PrivilegedService) finish(op string, err error) error {
	if err != nil && KindOf(err) == KindInternal {
		s.logger.Error("privileged operation failed", zap.String("operation", op), zap.Error(err))
		var opErr *OpError
		if !errors.As(err, &opErr) {
			err = Internal("an internal error occurred", err)
		}
	}
	s.metrics.RecordPrivileged(op, metrics.Outcome(string(KindOf(err)), err))
	return err
}

func (s *PrivilegedService) requireAdmin(ctx context.Context, callerID uuid.UUID) error {
	if callerID == uuid.Nil {
		return Unauthenticated("you must be signed in")
	}
	role, err := s.claims.Role(ctx, callerID)
	if err != nil {
		return err
	}
	if role != models.RoleAdmin {
		return PermissionDenied("only admins may perform this operation")
	}
	return nil
}

// ensureProfile returns the account's profile, creating a Viewer record from
// the account identity when it is missing.
func (s *PrivilegedService) ensureProfile(ctx context.Context, account *models.Account) (*models.User, error) {
	user, err := s.profiles.GetByID(ctx, account.ID)
	if KindOf(err) != KindNotFound {
		return user, err
	}
	user, _, err = s.profiles.Create(ctx, account.ID, account.Email, account.DisplayName, account.AvatarURL)
	return user, err
}

// assignRole writes the claim and then the profile record. The stores share
// no transaction; a failed profile write leaves them disagreeing until the
// role is assigned again.
func (s *PrivilegedService) assignRole(ctx context.Context, account *models.Account, role models.Role) (*models.User, error) {
	if err := s.claims.SetRole(ctx, account.ID, role); err != nil {
		return nil, err
	}

	user, err := s.ensureProfile(ctx, account)
	if err == nil {
		user, err = s.profiles.SetRole(ctx, account.ID, role)
	}
	if err != nil {
		s.logger.Error("role claim and profile record disagree",
			zap.Stringer("account_id", account.ID),
			zap.String("claim_role", role.String()),
			zap.Error(err),
		)
		return nil, Internal("failed to update profile role", err)
	}
	return user, nil
}

// SetRole gives the target account newRole. Only admins may call it.
func (s *PrivilegedService) SetRole(ctx context.Context, callerID uuid.UUID, targetID, newRole string) (*models.User, error) {
	user, err := s.setRole(ctx, callerID, targetID, newRole)
	return user, s.finish("set_role", err)
}

func (s *PrivilegedService) setRole(ctx context.Context, callerID uuid.UUID, targetID, newRole string) (*models.User, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}

	target, err := uuid.Parse(targetID)
	if err != nil {
		return nil, InvalidArgument("invalid target id")
	}
	role, err := models.ParseRole(newRole)
	if err != nil {
		return nil, InvalidArgument(fmt.Sprintf("invalid role %q", newRole))
	}

	account, err := s.accounts.GetByID(ctx, target)
	if err != nil {
		return nil, err
	}

	user, err := s.assignRole(ctx, account, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("role assigned",
		zap.Stringer("caller_id", callerID),
		zap.Stringer("target_id", target),
		zap.String("role", role.String()),
	)
	return user, nil
}

// MakeFirstAdmin promotes the caller when no admin exists yet.
func (s *PrivilegedService) MakeFirstAdmin(ctx context.Context, callerID uuid.UUID) (*models.User, error) {
	user, err := s.makeFirstAdmin(ctx, callerID)
	return user, s.finish("make_first_admin", err)
}

func (s *PrivilegedService) makeFirstAdmin(ctx context.Context, callerID uuid.UUID) (*models.User, error) {
	if callerID == uuid.Nil {
		return nil, Unauthenticated("you must be signed in")
	}

	ok, release, err := s.claims.AcquireBootstrapLock(ctx, callerID, bootstrapLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()
	if !ok {
		return nil, Internal("admin bootstrap already in progress, retry shortly", nil)
	}

	exists, err := s.profiles.HasAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		role, err := s.claims.Role(ctx, callerID)
		if err != nil {
			return nil, err
		}
		exists = role == models.RoleAdmin
	}
	if exists {
		return nil, AlreadyExists("an admin user already exists")
	}

	account, err := s.accounts.GetByID(ctx, callerID)
	if KindOf(err) == KindNotFound {
		return nil, Unauthenticated("account no longer exists")
	}
	if err != nil {
		return nil, err
	}

	user, err := s.assignRole(ctx, account, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.Info("first admin bootstrapped", zap.Stringer("account_id", callerID))
	return user, nil
}

// PromoteAdmin makes the account with the given email an admin without
// checking a caller. It backs the operator CLI.
func (s *PrivilegedService) PromoteAdmin(ctx context.Context, email string) (*models.User, error) {
	user, err := s.promoteAdmin(ctx, email)
	return user, s.finish("promote_admin", err)
}

func (s *PrivilegedService) promoteAdmin(ctx context.Context, email string) (*models.User, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.assignRole(ctx, account, models.RoleAdmin)
}

// SyncUsers removes profile records that have no live account.
func (s *PrivilegedService) SyncUsers(ctx context.Context, callerID uuid.UUID) (int64, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return 0, s.finish("sync_users", err)
	}
	removed, err := s.reconcile(ctx)
	return removed, s.finish("sync_users", err)
}

// Reconcile is SyncUsers without a caller, for the scheduler and the CLI.
func (s *PrivilegedService) Reconcile(ctx context.Context) (int64, error) {
	removed, err := s.reconcile(ctx)
	return removed, s.finish("reconcile", err)
}

func (s *PrivilegedService) reconcile(ctx context.Context) (int64, error) {
	profileIDs, err := s.profiles.ListIDs(ctx)
	if err != nil {
		return 0, err
	}
	accountIDs, err := s.accounts.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	live := make(map[uuid.UUID]struct{}, len(accountIDs))
	for _, id := range accountIDs {
		live[id] = struct{}{}
	}
	var orphans []uuid.UUID
	for _, id := range profileIDs {
		if _, ok := live[id]; !ok {
			orphans = append(orphans, id)
		}
	}

	var removed int64
	for start := 0; start < len(orphans); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(orphans))
		n, err := s.profiles.DeleteBatch(ctx, orphans[start:end])
		if err != nil {
			s.metrics.AddReconciled(removed)
			return removed, Internal(fmt.Sprintf("batch failed after removing %d records", removed), err)
		}
		removed += n
	}

	s.metrics.AddReconciled(removed)
	if removed > 0 {
		s.logger.Info("orphaned profiles removed", zap.Int64("count", removed))
	}
	return removed, nil
}

func (s *PrivilegedService) ListProfiles(ctx context.Context, callerID uuid.UUID) ([]models.User, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, s.finish("list_profiles", err)
	}
	users, err := s.profiles.List(ctx)
	return users, s.finish("list_profiles", err)
}

// DeleteProfile removes one profile record and leaves the account alone.
func (s *PrivilegedService) DeleteProfile(ctx context.Context, callerID uuid.UUID, targetID string) error {
	return s.finish("delete_profile", s.deleteProfile(ctx, callerID, targetID))
}

func (s *PrivilegedService) deleteProfile(ctx context.Context, callerID uuid.UUID, targetID string) error {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return err
	}
	target, err := uuid.Parse(targetID)
	if err != nil {
		return InvalidArgument("invalid target id")
	}
	removed, err := s.profiles.Delete(ctx, target)
	if err != nil {
		return err
	}
	if !removed {
		return NotFound("profile not found")
	}
	return nil
}

// ResetViewCounts zeroes every page's view counter.
func (s *PrivilegedService) ResetViewCounts(ctx context.Context, callerID uuid.UUID) (int64, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return 0, s.finish("reset_view_counts", err)
	}
	n, err := s.pages.ResetViewCounts(ctx)
	return n, s.finish("reset_view_counts", err)
}

// ResetAllViewCounts is ResetViewCounts without a caller, for the CLI.
func (s *PrivilegedService) ResetAllViewCounts(ctx context.Context) (int64, error) {
	n, err := s.pages.ResetViewCounts(ctx)
	return n, s.finish("reset_view_counts", err)
}

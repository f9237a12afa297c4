package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/lorewiki-api/internal/database"
	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MaxBatchSize bounds the rows touched by one batched write.
const MaxBatchSize = 500

const userColumns = `id, email, display_name, avatar_url, role, created_at, updated_at`

// ProfileService owns the profile records (users table). Every successful
// update is reported as a profile-updated event.
type ProfileService struct {
	db     *database.DB
	events LifecycleEvents
}

func NewProfileService(db *database.DB, events LifecycleEvents) *ProfileService {
	if events == nil {
		events = NopEvents{}
	}
	return &ProfileService{db: db, events: events}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var role string
	err := row.Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.AvatarURL,
		&role, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	return &user, nil
}

// Create inserts a Viewer profile for the account unless one exists. It
// returns the stored record and whether it was created by this call.
func (s *ProfileService) Create(ctx context.Context, id uuid.UUID, email, displayName string, avatarURL *string) (*models.User, bool, error) {
	user, err := scanUser(s.db.Pool.QueryRow(ctx, `
		INSERT INTO users (id, email, display_name, avatar_url, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
		RETURNING `+userColumns,
		id, email, displayName, avatarURL, string(models.DefaultRole)))
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create profile: %w", err)
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *ProfileService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(s.db.Pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound("profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return user, nil
}

func (s *ProfileService) GetByDisplayName(ctx context.Context, displayName string) (*models.User, error) {
	user, err := scanUser(s.db.Pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE display_name = $1
		ORDER BY created_at LIMIT 1
	`, displayName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return user, nil
}

func (s *ProfileService) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (s *ProfileService) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profile ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan profile id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *ProfileService) HasAdmin(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE role = $1)
	`, string(models.RoleAdmin)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for admin: %w", err)
	}
	return exists, nil
}

// UpdateIdentity changes the owner-editable fields. Nil arguments leave the
// field untouched.
func (s *ProfileService) UpdateIdentity(ctx context.Context, id uuid.UUID, displayName, avatarURL *string) (*models.User, error) {
	return s.update(ctx, id, `
		UPDATE users SET
			display_name = COALESCE($1, display_name),
			avatar_url = COALESCE($2, avatar_url),
			updated_at = NOW()
		WHERE id = $3
		RETURNING `+userColumns,
		displayName, avatarURL, id)
}

func (s *ProfileService) SetRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	return s.update(ctx, id, `
		UPDATE users SET role = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+userColumns,
		string(role), id)
}

// update locks the record, applies the statement and emits the before/after
// pair once the transaction commits.
func (s *ProfileService) update(ctx context.Context, id uuid.UUID, sql string, args ...any) (*models.User, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := scanUser(tx.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound("profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock profile: %w", err)
	}

	after, err := scanUser(tx.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit profile update: %w", err)
	}

	s.events.ProfileUpdated(before, after)
	return after, nil
}

func (s *ProfileService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete profile: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteBatch removes up to MaxBatchSize records in a single transaction.
// Records whose account exists at delete time are kept.
func (s *ProfileService) DeleteBatch(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if len(ids) > MaxBatchSize {
		return 0, fmt.Errorf("batch of %d exceeds limit of %d", len(ids), MaxBatchSize)
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		DELETE FROM users WHERE id = ANY($1)
		AND NOT EXISTS (SELECT 1 FROM accounts a WHERE a.id = users.id)
	`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete profiles: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return tag.RowsAffected(), nil
}

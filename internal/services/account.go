package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/dimitrije/lorewiki-api/internal/database"
	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/oauth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const minPasswordLength = 6

const accountColumns = `id, email, display_name, avatar_url, provider, provider_id, password_hash, created_at`

// AccountService is the identity provider: it owns accounts and their
// credentials and announces their creation and deletion.
type AccountService struct {
	db     *database.DB
	claims *ClaimStore
	events LifecycleEvents
}

func NewAccountService(db *database.DB, claims *ClaimStore, events LifecycleEvents) *AccountService {
	if events == nil {
		events = NopEvents{}
	}
	return &AccountService{db: db, claims: claims, events: events}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID, &a.Email, &a.DisplayName, &a.AvatarURL,
		&a.Provider, &a.ProviderID, &a.PasswordHash, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateWithPassword provisions an email/password account.
func (s *AccountService) CreateWithPassword(ctx context.Context, email, password, displayName string) (*models.Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, InvalidArgument("invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, InvalidArgument(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, InvalidArgument("display name is required")
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account, err := scanAccount(s.db.Pool.QueryRow(ctx, `
		INSERT INTO accounts (email, display_name, provider, provider_id, password_hash)
		VALUES ($1, $2, $3, $1, $4)
		RETURNING `+accountColumns,
		email, displayName, models.ProviderPassword, hash))
	if isUniqueViolation(err) {
		return nil, AlreadyExists("an account with this email already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.events.AccountCreated(account)
	return account, nil
}

// Authenticate checks an email/password pair.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	account, err := s.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if KindOf(err) == KindNotFound {
		return nil, Unauthenticated("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if account.Provider != models.ProviderPassword || account.PasswordHash == "" {
		return nil, Unauthenticated("invalid credentials")
	}

	match, err := argon2id.ComparePasswordAndHash(password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check password: %w", err)
	}
	if !match {
		return nil, Unauthenticated("invalid credentials")
	}
	return account, nil
}

// FindOrCreateFromOAuth returns the account linked to the provider identity,
// provisioning it on first sign-in.
func (s *AccountService) FindOrCreateFromOAuth(ctx context.Context, info *oauth.UserInfo) (*models.Account, error) {
	account, err := scanAccount(s.db.Pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE provider = $1 AND provider_id = $2
	`, info.Provider, info.ProviderID))
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	account, err = scanAccount(s.db.Pool.QueryRow(ctx, `
		INSERT INTO accounts (email, display_name, avatar_url, provider, provider_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+accountColumns,
		strings.ToLower(info.Email), info.DisplayName, nullableString(info.AvatarURL), info.Provider, info.ProviderID))
	if isUniqueViolation(err) {
		return nil, AlreadyExists("an account with this email already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.events.AccountCreated(account)
	return account, nil
}

func (s *AccountService) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := scanAccount(s.db.Pool.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound("account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (s *AccountService) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	account, err := scanAccount(s.db.Pool.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE email = $1
	`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound("account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (s *AccountService) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account: %w", err)
	}
	return exists, nil
}

// ListIDs returns the identifiers of every live account.
func (s *AccountService) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT id FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes the account, its refresh tokens (cascade) and its claims,
// then announces the deletion.
func (s *AccountService) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NotFound("account not found")
	}

	if s.claims != nil {
		if err := s.claims.Delete(ctx, id); err != nil {
			return err
		}
	}

	s.events.AccountDeleted(id)
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package testutil

import (
	"context"
	"io"
	"time"

	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/oauth"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/dimitrije/lorewiki-api/internal/sse"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockAccountService mocks the AccountService
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) account(args mock.Arguments) (*models.Account, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountService) CreateWithPassword(ctx context.Context, email, password, displayName string) (*models.Account, error) {
	return m.account(m.Called(ctx, email, password, displayName))
}

func (m *MockAccountService) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	return m.account(m.Called(ctx, email, password))
}

func (m *MockAccountService) FindOrCreateFromOAuth(ctx context.Context, info *oauth.UserInfo) (*models.Account, error) {
	return m.account(m.Called(ctx, info))
}

func (m *MockAccountService) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return m.account(m.Called(ctx, id))
}

func (m *MockAccountService) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProfileService mocks the ProfileService
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) user(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockProfileService) Create(ctx context.Context, id uuid.UUID, email, displayName string, avatarURL *string) (*models.User, bool, error) {
	args := m.Called(ctx, id, email, displayName, avatarURL)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.User), args.Bool(1), args.Error(2)
}

func (m *MockProfileService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *MockProfileService) GetByDisplayName(ctx context.Context, displayName string) (*models.User, error) {
	return m.user(m.Called(ctx, displayName))
}

func (m *MockProfileService) UpdateIdentity(ctx context.Context, id uuid.UUID, displayName, avatarURL *string) (*models.User, error) {
	return m.user(m.Called(ctx, id, displayName, avatarURL))
}

// MockClaimStore mocks the ClaimStore
type MockClaimStore struct {
	mock.Mock
}

func (m *MockClaimStore) Role(ctx context.Context, accountID uuid.UUID) (models.Role, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(models.Role), args.Error(1)
}

// MockTokenService mocks the TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockTokenService) RotateRefreshToken(ctx context.Context, userID uuid.UUID, oldHash, newHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, oldHash, newHash, expiresAt)
	return args.Error(0)
}

func (m *MockTokenService) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *MockTokenService) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockJWTService mocks the JWTService
type MockJWTService struct {
	mock.Mock
}

func (m *MockJWTService) GenerateTokenPair(userID uuid.UUID, email string, role models.Role) (*services.TokenPair, error) {
	args := m.Called(userID, email, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TokenPair), args.Error(1)
}

func (m *MockJWTService) ValidateRefreshToken(token string) (uuid.UUID, error) {
	args := m.Called(token)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockJWTService) RefreshExpiry() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

// MockPrivilegedService mocks the PrivilegedService
type MockPrivilegedService struct {
	mock.Mock
}

func (m *MockPrivilegedService) SetRole(ctx context.Context, callerID uuid.UUID, targetID, newRole string) (*models.User, error) {
	args := m.Called(ctx, callerID, targetID, newRole)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockPrivilegedService) MakeFirstAdmin(ctx context.Context, callerID uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockPrivilegedService) SyncUsers(ctx context.Context, callerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, callerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPrivilegedService) ListProfiles(ctx context.Context, callerID uuid.UUID) ([]models.User, error) {
	args := m.Called(ctx, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockPrivilegedService) DeleteProfile(ctx context.Context, callerID uuid.UUID, targetID string) error {
	args := m.Called(ctx, callerID, targetID)
	return args.Error(0)
}

func (m *MockPrivilegedService) ResetViewCounts(ctx context.Context, callerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, callerID)
	return args.Get(0).(int64), args.Error(1)
}

// MockPageService mocks the PageService
type MockPageService struct {
	mock.Mock
}

func (m *MockPageService) page(args mock.Arguments) (*models.Page, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Page), args.Error(1)
}

func (m *MockPageService) List(ctx context.Context, f services.PageFilter) ([]models.Page, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Page), args.Error(1)
}

func (m *MockPageService) GetBySlug(ctx context.Context, slug string) (*models.Page, error) {
	return m.page(m.Called(ctx, slug))
}

func (m *MockPageService) Create(ctx context.Context, author *models.User, in services.PageInput) (*models.Page, error) {
	return m.page(m.Called(ctx, author, in))
}

func (m *MockPageService) Update(ctx context.Context, slug string, editor *models.User, in services.PageInput) (*models.Page, error) {
	return m.page(m.Called(ctx, slug, editor, in))
}

func (m *MockPageService) SetStatus(ctx context.Context, slug string, status models.PageStatus) (*models.Page, error) {
	return m.page(m.Called(ctx, slug, status))
}

func (m *MockPageService) Delete(ctx context.Context, slug string) error {
	args := m.Called(ctx, slug)
	return args.Error(0)
}

func (m *MockPageService) IncrementViews(ctx context.Context, slug string) (int64, error) {
	args := m.Called(ctx, slug)
	return args.Get(0).(int64), args.Error(1)
}

// MockImageStore mocks the BlobStore
type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) UploadImage(ctx context.Context, prefix string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, prefix, data, contentType)
	return args.String(0), args.Error(1)
}

// MockAssistant mocks the AssistantService. Chunks are written to w in
// order before Err is returned.
type MockAssistant struct {
	Chunks []string
	Err    error
	Prompt string
}

func (m *MockAssistant) Generate(ctx context.Context, prompt string, w io.Writer, flush func() error) (int, error) {
	m.Prompt = prompt
	n := 0
	for _, chunk := range m.Chunks {
		if _, err := io.WriteString(w, chunk); err != nil {
			return n, err
		}
		n++
		if flush != nil {
			_ = flush()
		}
	}
	return n, m.Err
}

// MockSSEHub mocks the sse.Hub
type MockSSEHub struct {
	mock.Mock
}

func (m *MockSSEHub) Register(client *sse.Client) {
	m.Called(client)
}

func (m *MockSSEHub) Unregister(client *sse.Client) {
	m.Called(client)
}

// MockOAuthProvider mocks an OAuth provider
type MockOAuthProvider struct {
	mock.Mock
}

func (m *MockOAuthProvider) GetConsentURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*oauth.UserInfo, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth.UserInfo), args.Error(1)
}

func (m *MockOAuthProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

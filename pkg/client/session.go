package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dimitrije/lorewiki-api/pkg/authz"
	"github.com/dimitrije/lorewiki-api/pkg/dto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const refreshTimeout = 30 * time.Second

// State is what the UI reads. A nil User with Loading false means the
// session could not be established and the user should sign in again.
type State struct {
	Loading bool
	User    *dto.ProfileResponse
	// Role is the role claim of the current access token.
	Role authz.Role
}

// tokenClaims is the part of the access token the session reads. The
// signature is checked by the server, not here.
type tokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// Session caches the signed-in user's profile and role.
type Session struct {
	client *Client
	logger *zap.Logger

	group singleflight.Group
	// gen orders writes to state; a result older than the last applied one
	// is dropped.
	gen     atomic.Uint64
	applied uint64

	mu    sync.RWMutex
	state State
}

func NewSession(client *Client, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		client: client,
		logger: logger,
		state:  State{Loading: true, Role: authz.Viewer},
	}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Role() authz.Role {
	return s.State().Role
}

// Start establishes the session: it forces a token refresh so the role claim
// is current, then loads the profile and creates it when missing.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	s.state.Loading = true
	s.mu.Unlock()

	_, err := s.ForceRefresh(ctx)
	return err
}

// ForceRefresh fetches a new token and re-reads the profile. Concurrent
// callers share one refresh. The refresh runs to completion even if ctx is
// cancelled; only the wait is abandoned.
func (s *Session) ForceRefresh(ctx context.Context) (State, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(rctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return s.State(), res.Err
		}
		return res.Val.(State), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

func (s *Session) refresh(ctx context.Context) (State, error) {
	gen := s.gen.Add(1)

	tokens, err := s.client.Refresh(ctx)
	if err != nil {
		s.fail(gen)
		return s.State(), fmt.Errorf("failed to refresh token: %w", err)
	}

	claims, err := parseClaims(tokens.AccessToken)
	if err != nil {
		s.fail(gen)
		return s.State(), err
	}

	profile, err := s.loadProfile(ctx)
	if err != nil {
		s.logger.Warn("profile fetch failed", zap.Stringer("user_id", claims.UserID), zap.Error(err))
		s.fail(gen)
		return s.State(), fmt.Errorf("failed to load profile: %w", err)
	}

	// Refreshes never overlap, so this token is the newest and its role
	// always applies. The profile may already be superseded by a pushed one.
	s.mu.Lock()
	s.state.Loading = false
	s.state.Role = roleOf(claims.Role)
	if gen >= s.applied {
		s.applied = gen
		s.state.User = profile
	}
	st := s.state
	s.mu.Unlock()
	return st, nil
}

func (s *Session) loadProfile(ctx context.Context) (*dto.ProfileResponse, error) {
	profile, err := s.client.Me(ctx)
	if KindOf(err) == KindNotFound {
		return s.client.EnsureMe(ctx)
	}
	return profile, err
}

// fail signs the session out, even when a profile pushed after gen was
// taken has already been applied: without a token that profile is not the
// caller's to show.
func (s *Session) fail(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = max(s.applied, gen)
	s.state = State{Loading: false, Role: authz.Viewer}
}

func (s *Session) apply(gen uint64, fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen < s.applied {
		return
	}
	s.applied = gen
	fn(&s.state)
}

// observe applies a profile pushed by the server. A signed-out session
// ignores pushes until the next successful refresh.
func (s *Session) observe(profile dto.ProfileResponse) {
	gen := s.gen.Add(1)
	s.apply(gen, func(st *State) {
		if st.User == nil && !st.Loading {
			return
		}
		if st.User != nil && st.User.ID != profile.ID {
			return
		}
		st.User = &profile
	})
}

// Stale reports whether the profile record's role differs from the role
// claim, which happens after an admin changes it until the next refresh.
func (s *Session) Stale() bool {
	st := s.State()
	return st.User != nil && roleOf(st.User.Role) != st.Role
}

// Can evaluates the page gate locally to decide which controls to show.
// The server checks again on every request.
func (s *Session) Can(action authz.Action, page *dto.PageResponse) bool {
	st := s.State()
	actor := uuid.Nil
	if st.User != nil {
		actor = st.User.ID
	}

	var entry *authz.Entry
	if page != nil {
		entry = &authz.Entry{AuthorID: page.AuthorID, Published: page.Status == "published"}
	}
	return authz.Can(st.Role, action, entry, actor)
}

func parseClaims(token string) (*tokenClaims, error) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode access token: %w", err)
	}
	return &claims, nil
}

func roleOf(s string) authz.Role {
	switch r := authz.Role(s); r {
	case authz.Editor, authz.Admin:
		return r
	}
	return authz.Viewer
}

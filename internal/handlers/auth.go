package handlers

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dimitrije/lorewiki-api/internal/config"
	"github.com/dimitrije/lorewiki-api/internal/middleware"
	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/oauth"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/dimitrije/lorewiki-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"go.uber.org/zap"
)

const (
	stateTTL    = 10 * time.Minute
	authCodeTTL = 30 * time.Second
)

type AuthHandler struct {
	cfg       *config.Config
	providers map[string]oauth.Provider
	accounts  AccountServiceInterface
	profiles  ProfileServiceInterface
	claims    ClaimStoreInterface
	tokens    TokenServiceInterface
	jwt       JWTServiceInterface
	logger    *zap.Logger
	states    sync.Map
	authCodes sync.Map
}

type stateData struct {
	expiresAt time.Time
}

type authCodeData struct {
	accountID uuid.UUID
	expiresAt time.Time
}

// NewAuthHandler configures the OAuth providers that have credentials and
// sweeps expired states and auth codes until ctx is done.
func NewAuthHandler(
	ctx context.Context,
	cfg *config.Config,
	accounts AccountServiceInterface,
	profiles ProfileServiceInterface,
	claims ClaimStoreInterface,
	tokens TokenServiceInterface,
	jwt JWTServiceInterface,
	logger *zap.Logger,
) *AuthHandler {
	h := &AuthHandler{
		cfg:       cfg,
		providers: oauth.NewProviders(cfg),
		accounts:  accounts,
		profiles:  profiles,
		claims:    claims,
		tokens:    tokens,
		jwt:       jwt,
		logger:    logger,
	}

	go h.cleanupStates(ctx)

	return h
}

func (h *AuthHandler) cleanupStates(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.sweep(now)
		}
	}
}

func (h *AuthHandler) sweep(now time.Time) {
	h.states.Range(func(key, value any) bool {
		if sd, ok := value.(stateData); ok && now.After(sd.expiresAt) {
			h.states.Delete(key)
		}
		return true
	})
	h.authCodes.Range(func(key, value any) bool {
		if acd, ok := value.(authCodeData); ok && now.After(acd.expiresAt) {
			h.authCodes.Delete(key)
		}
		return true
	})
}

// issueTokens mints a token pair whose role claim is read from the claim
// store, and records the refresh token.
func (h *AuthHandler) issueTokens(ctx context.Context, account *models.Account) (*services.TokenPair, error) {
	role, err := h.claims.Role(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	pair, err := h.jwt.GenerateTokenPair(account.ID, account.Email, role)
	if err != nil {
		return nil, services.Internal("failed to generate tokens", err)
	}
	expiresAt := time.Now().Add(h.jwt.RefreshExpiry())
	if err := h.tokens.StoreRefreshToken(ctx, account.ID, services.HashToken(pair.RefreshToken), expiresAt); err != nil {
		return nil, services.Internal("failed to store refresh token", err)
	}
	return pair, nil
}

func tokenResponse(pair *services.TokenPair) dto.TokenResponse {
	return dto.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}
}

func (h *AuthHandler) Signup(c *drift.Context) {
	var req dto.SignupRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	ctx := c.Request.Context()
	account, err := h.accounts.CreateWithPassword(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}

	pair, err := h.issueTokens(ctx, account)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("account created", zap.Stringer("account_id", account.ID), zap.String("provider", account.Provider))
	_ = c.JSON(http.StatusCreated, tokenResponse(pair))
}

// Login signs in with an email, or with a display name when the login has
// no "@".
func (h *AuthHandler) Login(c *drift.Context) {
	var req dto.LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	login := strings.TrimSpace(req.Login)
	if login == "" || req.Password == "" {
		c.BadRequest("login and password are required")
		return
	}

	ctx := c.Request.Context()
	email := login
	if !strings.Contains(login, "@") {
		profile, err := h.profiles.GetByDisplayName(ctx, login)
		if err != nil {
			if services.KindOf(err) == services.KindNotFound {
				err = services.Unauthenticated("invalid credentials")
			}
			respondError(c, err)
			return
		}
		email = profile.Email
	}

	account, err := h.accounts.Authenticate(ctx, email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	pair, err := h.issueTokens(ctx, account)
	if err != nil {
		respondError(c, err)
		return
	}
	_ = c.JSON(http.StatusOK, tokenResponse(pair))
}

func (h *AuthHandler) GetConsentURL(c *drift.Context) {
	provider := c.Param("provider")

	p, ok := h.providers[provider]
	if !ok {
		c.BadRequest("unsupported provider: " + provider)
		return
	}

	state, err := oauth.RandomToken()
	if err != nil {
		c.InternalServerError("failed to generate state")
		return
	}

	h.states.Store(state, stateData{expiresAt: time.Now().Add(stateTTL)})

	_ = c.JSON(http.StatusOK, dto.ConsentURLResponse{URL: p.GetConsentURL(state)})
}

func (h *AuthHandler) Callback(c *drift.Context) {
	provider := c.Param("provider")

	p, ok := h.providers[provider]
	if !ok {
		h.redirectWithError(c, "unsupported provider")
		return
	}

	state := c.QueryParam("state")
	if state == "" {
		h.redirectWithError(c, "missing state parameter")
		return
	}

	sd, ok := h.states.LoadAndDelete(state)
	if !ok {
		h.redirectWithError(c, "invalid or expired state")
		return
	}
	if sdTyped, ok := sd.(stateData); !ok || time.Now().After(sdTyped.expiresAt) {
		h.redirectWithError(c, "state expired")
		return
	}

	code := c.QueryParam("code")
	if code == "" {
		h.redirectWithError(c, "missing authorization code")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	userInfo, err := p.ExchangeCode(ctx, code)
	if err != nil {
		h.redirectWithError(c, "failed to exchange code: "+err.Error())
		return
	}

	account, err := h.accounts.FindOrCreateFromOAuth(ctx, userInfo)
	if err != nil {
		h.logger.Error("oauth account provisioning failed", zap.String("provider", provider), zap.Error(err))
		h.redirectWithError(c, "failed to create account")
		return
	}

	authCode, err := oauth.RandomToken()
	if err != nil {
		h.redirectWithError(c, "failed to generate auth code")
		return
	}

	h.authCodes.Store(authCode, authCodeData{
		accountID: account.ID,
		expiresAt: time.Now().Add(authCodeTTL),
	})

	redirectURL := fmt.Sprintf("%s?code=%s", h.cfg.FrontendCallbackURL, url.QueryEscape(authCode))
	h.renderCallbackPage(c, redirectURL, authCode, false)
}

func (h *AuthHandler) ExchangeCode(c *drift.Context) {
	var req dto.ExchangeCodeRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Code == "" {
		c.BadRequest("code is required")
		return
	}

	acd, ok := h.authCodes.LoadAndDelete(req.Code)
	if !ok {
		c.Unauthorized("invalid or expired code")
		return
	}
	codeData, ok := acd.(authCodeData)
	if !ok || time.Now().After(codeData.expiresAt) {
		c.Unauthorized("code expired")
		return
	}

	ctx := c.Request.Context()
	account, err := h.accounts.GetByID(ctx, codeData.accountID)
	if err != nil {
		c.Unauthorized("account not found")
		return
	}

	pair, err := h.issueTokens(ctx, account)
	if err != nil {
		respondError(c, err)
		return
	}
	_ = c.JSON(http.StatusOK, tokenResponse(pair))
}

// RefreshToken is the forced refresh: it redeems the refresh token once and
// mints an access token carrying the role currently in the claim store.
func (h *AuthHandler) RefreshToken(c *drift.Context) {
	var req dto.RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.RefreshToken == "" {
		c.BadRequest("refresh_token is required")
		return
	}

	accountID, err := h.jwt.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.Unauthorized("invalid refresh token")
		return
	}

	ctx := c.Request.Context()
	account, err := h.accounts.GetByID(ctx, accountID)
	if err != nil {
		c.Unauthorized("account not found")
		return
	}

	role, err := h.claims.Role(ctx, account.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	pair, err := h.jwt.GenerateTokenPair(account.ID, account.Email, role)
	if err != nil {
		c.InternalServerError("failed to generate tokens")
		return
	}

	oldHash := services.HashToken(req.RefreshToken)
	newHash := services.HashToken(pair.RefreshToken)
	expiresAt := time.Now().Add(h.jwt.RefreshExpiry())
	if err := h.tokens.RotateRefreshToken(ctx, account.ID, oldHash, newHash, expiresAt); err != nil {
		if services.KindOf(err) == services.KindUnauthenticated {
			c.Unauthorized("refresh token not found or expired")
			return
		}
		c.InternalServerError("failed to rotate refresh token")
		return
	}

	_ = c.JSON(http.StatusOK, tokenResponse(pair))
}

func (h *AuthHandler) Logout(c *drift.Context) {
	var req dto.RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.RefreshToken != "" {
		_ = h.tokens.RevokeRefreshToken(c.Request.Context(), services.HashToken(req.RefreshToken))
	}

	_ = c.JSON(http.StatusOK, dto.MessageResponse{Message: "logged out"})
}

func (h *AuthHandler) LogoutAll(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	if err := h.tokens.RevokeAllUserTokens(c.Request.Context(), userID); err != nil {
		c.InternalServerError("failed to revoke tokens")
		return
	}

	_ = c.JSON(http.StatusOK, dto.MessageResponse{Message: "all sessions logged out"})
}

// DeleteAccount removes the caller's account. Its refresh tokens go with it
// and the profile record is removed by the account-deleted trigger.
func (h *AuthHandler) DeleteAccount(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	ctx := c.Request.Context()
	if err := h.tokens.RevokeAllUserTokens(ctx, userID); err != nil {
		c.InternalServerError("failed to revoke tokens")
		return
	}
	if err := h.accounts.Delete(ctx, userID); err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("account deleted", zap.Stringer("account_id", userID))
	_ = c.JSON(http.StatusOK, dto.MessageResponse{Message: "account deleted"})
}

func (h *AuthHandler) redirectWithError(c *drift.Context, errMsg string) {
	redirectURL := fmt.Sprintf("%s?error=%s", h.cfg.FrontendCallbackURL, url.QueryEscape(errMsg))
	h.renderCallbackPage(c, redirectURL, errMsg, true)
}

func (h *AuthHandler) renderCallbackPage(c *drift.Context, redirectURL, detail string, failed bool) {
	title := "Signed in"
	heading := "Welcome back to LoreWiki"
	subtitle := "Taking you back to the wiki..."
	accent := "#1e3a8a"
	statusCode := http.StatusOK
	codeSection := ""

	if failed {
		title = "Sign-in failed"
		heading = "We couldn't sign you in"
		subtitle = html.EscapeString(detail)
		accent = "#991b1b"
		statusCode = http.StatusBadRequest
	} else {
		codeSection = fmt.Sprintf(`
        <hr>
        <p class="hint">Not redirected? Paste this code into the sign-in dialog.</p>
        <pre id="auth-code">%s</pre>`, html.EscapeString(detail))
	}

	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <style>
        body { font-family: Georgia, serif; background: #faf7f0; color: #292524; margin: 0; padding: 48px 20px; }
        main { max-width: 420px; margin: 0 auto; background: #fff; border: 1px solid #e7e5e4; border-radius: 6px; padding: 36px 28px; text-align: center; }
        h1 { font-size: 21px; color: %s; margin: 0 0 8px 0; }
        p { color: #57534e; font-size: 14px; margin: 0 0 6px 0; }
        hr { border: 0; border-top: 1px solid #e7e5e4; margin: 24px 0; }
        .hint { font-size: 13px; }
        pre { background: #f5f5f4; border-radius: 4px; padding: 10px; font-size: 13px; white-space: pre-wrap; word-break: break-all; }
    </style>
</head>
<body>
    <main>
        <h1>%s</h1>
        <p>%s</p>
        <p class="hint">You can close this window.</p>%s
    </main>
    <script>window.location.href = %q;</script>
</body>
</html>`, title, accent, heading, subtitle, codeSection, redirectURL)

	_ = c.HTML(statusCode, page)
}

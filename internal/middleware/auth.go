package middleware

import (
	"context"
	"strings"

	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
	TokenRoleKey = "token_role"
	RoleKey      = "role"
)

// RoleResolver returns the authoritative role of an account.
type RoleResolver interface {
	Role(ctx context.Context, accountID uuid.UUID) (models.Role, error)
}

func bearerToken(c *drift.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "missing authorization header"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", "invalid authorization header format"
	}
	return parts[1], ""
}

func setClaims(c *drift.Context, claims *services.Claims) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(UserEmailKey, claims.Email)
	c.Set(TokenRoleKey, claims.Role)
}

// Auth rejects requests without a valid access token.
func Auth(jwtService *services.JWTService) drift.HandlerFunc {
	return func(c *drift.Context) {
		token, problem := bearerToken(c)
		if problem != "" {
			c.Unauthorized(problem)
			return
		}

		claims, err := jwtService.ValidateAccessToken(token)
		if err != nil {
			c.Unauthorized("invalid or expired token")
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(jwtService *services.JWTService) drift.HandlerFunc {
	return func(c *drift.Context) {
		if token, problem := bearerToken(c); problem == "" {
			if claims, err := jwtService.ValidateAccessToken(token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// ResolveRole looks the caller's role up in the claim store. Anonymous callers
// are Viewers. The token's own role claim is never trusted for authorisation.
func ResolveRole(resolver RoleResolver) drift.HandlerFunc {
	return func(c *drift.Context) {
		role := models.DefaultRole
		if userID := GetUserID(c); userID != uuid.Nil {
			r, err := resolver.Role(c.Request.Context(), userID)
			if err != nil {
				c.InternalServerError("failed to resolve role")
				return
			}
			role = r
		}
		c.Set(RoleKey, role)
		c.Next()
	}
}

func GetUserID(c *drift.Context) uuid.UUID {
	if id, ok := c.Get(UserIDKey); ok {
		if uid, ok := id.(uuid.UUID); ok {
			return uid
		}
	}
	return uuid.Nil
}

func GetUserEmail(c *drift.Context) string {
	if email, ok := c.Get(UserEmailKey); ok {
		if e, ok := email.(string); ok {
			return e
		}
	}
	return ""
}

// GetRole returns the role set by ResolveRole, or Viewer.
func GetRole(c *drift.Context) models.Role {
	if v, ok := c.Get(RoleKey); ok {
		if r, ok := v.(models.Role); ok {
			return r
		}
	}
	return models.DefaultRole
}

// GetTokenRole returns the role claimed by the access token. It may be stale.
func GetTokenRole(c *drift.Context) models.Role {
	if v, ok := c.Get(TokenRoleKey); ok {
		if r, ok := v.(models.Role); ok {
			return r
		}
	}
	return models.DefaultRole
}

// Package oauth signs users in through GitHub, GitLab and Google and maps
// their identity onto a LoreWiki account.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dimitrije/lorewiki-api/internal/config"
)

// UserInfo is the provider identity an account is created from.
type UserInfo struct {
	Provider    string
	ProviderID  string
	Email       string
	DisplayName string
	AvatarURL   string
}

type Provider interface {
	GetConsentURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*UserInfo, error)
	Name() string
}

// NewProviders returns the providers that have a client ID configured,
// keyed by name.
func NewProviders(cfg *config.Config) map[string]Provider {
	providers := make(map[string]Provider)
	add := func(p Provider, oc config.OAuthConfig) {
		if oc.ClientID != "" {
			providers[p.Name()] = p
		}
	}
	add(NewGitHubProvider(cfg.GitHub), cfg.GitHub)
	add(NewGitLabProvider(cfg.GitLab), cfg.GitLab)
	add(NewGoogleProvider(cfg.Google), cfg.Google)
	return providers
}

// RandomToken returns 32 random bytes, URL-safe encoded. It backs both the
// consent state and the one-time auth code.
func RandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// displayName picks the first non-blank candidate, then the local part of
// email, so an account never starts with an empty display name.
func displayName(email string, candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

func fetchJSON(ctx context.Context, client *http.Client, provider, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to get user info: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s api returned status %d", provider, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", provider, err)
	}
	return nil
}

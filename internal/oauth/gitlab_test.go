package oauth

import (
	"context"
	"testing"

	"github.com/dimitrije/lorewiki-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGitLab(t *testing.T, routes map[string]any) *GitLabProvider {
	srv := fakeProvider(t, routes)
	p := NewGitLabProvider(config.OAuthConfig{ClientID: "id", ClientSecret: "secret"})
	pointAt(p.config, srv)
	p.apiBase = srv.URL
	return p
}

func TestGitLabProvider_ConsentURL(t *testing.T) {
	p := NewGitLabProvider(config.OAuthConfig{ClientID: "id"})

	url := p.GetConsentURL("abc")

	assert.Contains(t, url, "gitlab.com/oauth/authorize")
	assert.Contains(t, url, "scope=read_user")
	assert.Equal(t, "gitlab", p.Name())
}

func TestGitLabProvider_ExchangeCode(t *testing.T) {
	p := newTestGitLab(t, map[string]any{
		"/user": map[string]any{"id": 9, "username": "scribe", "name": "The Scribe", "email": "scribe@example.com"},
	})

	info, err := p.ExchangeCode(context.Background(), "good-code")

	require.NoError(t, err)
	assert.Equal(t, "9", info.ProviderID)
	assert.Equal(t, "The Scribe", info.DisplayName)
	assert.Empty(t, info.AvatarURL)
}

func TestGitLabProvider_ExchangeCode_NoEmail(t *testing.T) {
	p := newTestGitLab(t, map[string]any{
		"/user": map[string]any{"id": 9, "username": "scribe"},
	})

	_, err := p.ExchangeCode(context.Background(), "good-code")

	assert.ErrorContains(t, err, "no email")
}

package oauth

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dimitrije/lorewiki-api/internal/config"
	"github.com/dimitrije/lorewiki-api/internal/models"
	"golang.org/x/oauth2"
)

var gitlabEndpoint = oauth2.Endpoint{
	AuthURL:  "https://gitlab.com/oauth/authorize",
	TokenURL: "https://gitlab.com/oauth/token",
}

type GitLabProvider struct {
	config  *oauth2.Config
	apiBase string
}

func NewGitLabProvider(cfg config.OAuthConfig) *GitLabProvider {
	return &GitLabProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read_user"},
			Endpoint:     gitlabEndpoint,
		},
		apiBase: "https://gitlab.com/api/v4",
	}
}

func (p *GitLabProvider) Name() string {
	return models.ProviderGitLab
}

func (p *GitLabProvider) GetConsentURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *GitLabProvider) ExchangeCode(ctx context.Context, code string) (*UserInfo, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	var glUser struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := fetchJSON(ctx, p.config.Client(ctx, token), p.Name(), p.apiBase+"/user", &glUser); err != nil {
		return nil, err
	}
	if glUser.Email == "" {
		return nil, fmt.Errorf("gitlab account has no email")
	}

	return &UserInfo{
		Provider:    p.Name(),
		ProviderID:  strconv.FormatInt(glUser.ID, 10),
		Email:       glUser.Email,
		DisplayName: displayName(glUser.Email, glUser.Name, glUser.Username),
		AvatarURL:   glUser.AvatarURL,
	}, nil
}

package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dimitrije/lorewiki-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeProvider serves a token endpoint and the given API routes.
func fakeProvider(t *testing.T, routes map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"provider-token","token_type":"bearer"}`))
	})
	for path, body := range routes {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer provider-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if status, ok := body.(int); ok {
				w.WriteHeader(status)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func pointAt(c *oauth2.Config, srv *httptest.Server) {
	c.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/authorize",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func TestRandomToken(t *testing.T) {
	a, err := RandomToken()
	require.NoError(t, err)
	b, err := RandomToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
	assert.NotContains(t, a, "=")
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		candidates []string
		want       string
	}{
		{"first candidate", "a@x.io", []string{"Aria Vale", "aria"}, "Aria Vale"},
		{"skips blank", "a@x.io", []string{"  ", "aria"}, "aria"},
		{"trims", "a@x.io", []string{" Aria "}, "Aria"},
		{"email fallback", "lore.keeper@x.io", []string{"", ""}, "lore.keeper"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, displayName(tt.email, tt.candidates...))
		})
	}
}

func TestNewProviders(t *testing.T) {
	cfg := &config.Config{
		GitHub: config.OAuthConfig{ClientID: "gh"},
		Google: config.OAuthConfig{ClientID: "g"},
	}

	providers := NewProviders(cfg)

	assert.Len(t, providers, 2)
	assert.Contains(t, providers, "github")
	assert.Contains(t, providers, "google")
	assert.NotContains(t, providers, "gitlab")
}

func TestNewProviders_NoneConfigured(t *testing.T) {
	assert.Empty(t, NewProviders(&config.Config{}))
}

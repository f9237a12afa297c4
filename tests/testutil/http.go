package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/dimitrije/lorewiki-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const JWTSecret = "test-secret-key"

// NewJWTService returns the JWT service handler and middleware tests sign
// with.
func NewJWTService() *services.JWTService {
	return services.NewJWTService(JWTSecret, 15*time.Minute, 24*time.Hour)
}

// IssueToken signs an access token whose role claim is role. Handlers never
// authorise from that claim, so tests use it to model a stale token.
func IssueToken(t *testing.T, jwtSvc *services.JWTService, userID uuid.UUID, email string, role models.Role) string {
	t.Helper()
	pair, err := jwtSvc.GenerateTokenPair(userID, email, role)
	require.NoError(t, err)
	return pair.AccessToken
}

// Request builds a request with an optional JSON body and bearer token.
func Request(t *testing.T, method, path string, body any, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

// DecodeError decodes the error envelope every failed request returns.
func DecodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	DecodeJSON(t, rec, &resp)
	return resp
}

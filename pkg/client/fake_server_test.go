package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dimitrije/lorewiki-api/pkg/dto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// fakeAPI is an in-memory stand-in for the endpoints the session uses.
type fakeAPI struct {
	t      *testing.T
	userID uuid.UUID

	mu        sync.Mutex
	role      string
	profile   *dto.ProfileResponse
	meFailure int
	created   int

	refreshCalls atomic.Int32
	refreshGate  chan struct{}

	events    chan string
	connected chan struct{}
	connOnce  sync.Once

	srv *httptest.Server
}

func newFakeAPI(t *testing.T, role string) *fakeAPI {
	f := &fakeAPI{
		t:         t,
		userID:    uuid.New(),
		role:      role,
		events:    make(chan string, 8),
		connected: make(chan struct{}),
	}
	f.profile = &dto.ProfileResponse{
		ID:          f.userID,
		Email:       "aria@example.com",
		DisplayName: "Aria",
		Role:        role,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/refresh", f.refresh)
	mux.HandleFunc("GET /api/v1/users/me", f.getMe)
	mux.HandleFunc("POST /api/v1/users/me", f.ensureMe)
	mux.HandleFunc("GET /api/v1/users/me/events", f.stream)
	f.srv = httptest.NewServer(mux)
	return f
}

func (f *fakeAPI) client(opts ...Option) *Client {
	c := New(f.srv.URL, append([]Option{WithHTTPClient(f.srv.Client())}, opts...)...)
	c.SetTokens("", "initial-refresh")
	return c
}

// setRole changes the role the way an admin would: claim and profile.
func (f *fakeAPI) setRole(role string) dto.ProfileResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.role = role
	p := *f.profile
	p.Role = role
	f.profile = &p
	return p
}

func (f *fakeAPI) push(t *testing.T, p dto.ProfileResponse) {
	t.Helper()
	data, err := json.Marshal(map[string]any{"type": "profile_updated", "data": p})
	if err != nil {
		t.Fatal(err)
	}
	f.events <- string(data)
}

func (f *fakeAPI) refresh(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)
	if f.refreshGate != nil {
		<-f.refreshGate
	}

	f.mu.Lock()
	role := f.role
	f.mu.Unlock()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": f.userID.String(),
		"email":   "aria@example.com",
		"role":    role,
		"exp":     time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.TokenResponse{
		AccessToken:  token,
		RefreshToken: uuid.NewString(),
		ExpiresIn:    60,
	})
}

func (f *fakeAPI) getMe(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meFailure != 0 {
		writeJSON(w, f.meFailure, dto.ErrorResponse{Code: "internal", Message: "store unreachable"})
		return
	}
	if f.profile == nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Code: "not-found", Message: "profile not found"})
		return
	}
	writeJSON(w, http.StatusOK, f.profile)
}

func (f *fakeAPI) ensureMe(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile == nil {
		f.created++
		f.profile = &dto.ProfileResponse{ID: f.userID, Email: "aria@example.com", DisplayName: "aria", Role: "Viewer"}
		writeJSON(w, http.StatusCreated, f.profile)
		return
	}
	writeJSON(w, http.StatusOK, f.profile)
}

func (f *fakeAPI) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "no flusher", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "event: system\ndata: {\"type\":\"connected\"}\n\n")
	flusher.Flush()
	f.connOnce.Do(func() { close(f.connected) })

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-f.events:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

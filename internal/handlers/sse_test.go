package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/lorewiki-api/internal/middleware"
	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/sse"
	"github.com/dimitrije/lorewiki-api/tests/testutil"
	"github.com/m1z23r/drift/pkg/drift"
	driftmw "github.com/m1z23r/drift/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSSEHandler_Connect_NotAuthenticated(t *testing.T) {
	hub := new(testutil.MockSSEHub)
	handler := NewSSEHandler(hub)

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Get("/users/me/events", handler.Connect)

	rec := testutil.Serve(app, httptest.NewRequest(http.MethodGet, "/users/me/events", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	hub.AssertNotCalled(t, "Register", mock.Anything)
}

func TestSSEHandler_Connect_UnregistersOnDisconnect(t *testing.T) {
	registered := make(chan struct{})
	hub := new(testutil.MockSSEHub)
	hub.On("Register", mock.AnythingOfType("*sse.Client")).Run(func(mock.Arguments) { close(registered) }).Return()
	hub.On("Unregister", mock.AnythingOfType("*sse.Client")).Return()
	handler := NewSSEHandler(hub)
	jwtSvc := testutil.NewJWTService()

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Use(middleware.Auth(jwtSvc))
	app.Get("/users/me/events", handler.Connect)

	user := newTestUser(models.RoleViewer)
	ctx, cancel := context.WithCancel(context.Background())
	req := testutil.Request(t, http.MethodGet, "/users/me/events", nil, testutil.IssueToken(t, jwtSvc, user.ID, user.Email, user.Role)).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		app.ServeHTTP(rec, req)
		close(done)
	}()

	select {
	case <-registered:
	case <-time.After(time.Second):
		t.Fatal("client was never registered")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not end after the client went away")
	}

	hub.AssertExpectations(t)
	assert.Contains(t, rec.Body.String(), "connected")
}

func TestSSEHandler_Connect_ForwardsOwnProfileEvents(t *testing.T) {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := sse.NewHub()
	go hub.Run(hubCtx)

	handler := NewSSEHandler(hub)
	jwtSvc := testutil.NewJWTService()

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Use(middleware.Auth(jwtSvc))
	app.Get("/users/me/events", handler.Connect)

	user := newTestUser(models.RoleEditor)
	other := newTestUser(models.RoleViewer)

	ctx, cancel := context.WithCancel(context.Background())
	req := testutil.Request(t, http.MethodGet, "/users/me/events", nil, testutil.IssueToken(t, jwtSvc, user.ID, user.Email, user.Role)).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		app.ServeHTTP(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return hub.Connected(user.ID) == 1 }, time.Second, 10*time.Millisecond)

	hub.BroadcastToUser(other.ID, sse.EventProfileUpdated, other)
	hub.BroadcastToUser(user.ID, sse.EventProfileUpdated, user)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	assert.Contains(t, body, sse.EventProfileUpdated)
	assert.Contains(t, body, user.ID.String())
	assert.NotContains(t, body, other.ID.String())
}

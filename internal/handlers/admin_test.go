package handlers

import (
	"net/http"
	"testing"

	"github.com/dimitrije/lorewiki-api/internal/middleware"
	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/dimitrije/lorewiki-api/pkg/dto"
	"github.com/dimitrije/lorewiki-api/tests/testutil"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	driftmw "github.com/m1z23r/drift/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupAdminTest(t *testing.T) (*testutil.MockPrivilegedService, http.Handler, *services.JWTService) {
	t.Helper()
	privileged := new(testutil.MockPrivilegedService)
	handler := NewAdminHandler(privileged)
	jwtSvc := testutil.NewJWTService()

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Use(middleware.Auth(jwtSvc))
	app.Post("/admin/roles", handler.SetRole)
	app.Post("/admin/bootstrap", handler.Bootstrap)
	app.Post("/admin/sync-users", handler.SyncUsers)
	app.Get("/admin/users", handler.ListUsers)
	app.Delete("/admin/users/:id", handler.DeleteUser)
	app.Post("/admin/reset-view-counts", handler.ResetViewCounts)
	return privileged, app, jwtSvc
}

func TestAdminHandler_SetRole_Success(t *testing.T) {
	privileged, app, jwtSvc := setupAdminTest(t)
	caller := newTestUser(models.RoleAdmin)
	target := newTestUser(models.RoleEditor)

	privileged.On("SetRole", mock.Anything, caller.ID, target.ID.String(), "Editor").Return(target, nil)

	token := testutil.IssueToken(t, jwtSvc, caller.ID, caller.Email, models.RoleAdmin)
	rec := testutil.Serve(app, testutil.Request(t, http.MethodPost, "/admin/roles", dto.SetRoleRequest{
		TargetID: target.ID.String(),
		Role:     "Editor",
	}, token))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.ProfileResponse
	testutil.DecodeJSON(t, rec, &response)
	assert.Equal(t, "Editor", response.Role)
	privileged.AssertExpectations(t)
}

func TestAdminHandler_SetRole_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"permission denied", services.PermissionDenied("only admins may perform this operation"), http.StatusForbidden},
		{"invalid role", services.InvalidArgument(`invalid role "Owner"`), http.StatusBadRequest},
		{"missing target", services.NotFound("account not found"), http.StatusNotFound},
		{"split write", services.Internal("failed to update profile role", assert.AnError), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			privileged, app, jwtSvc := setupAdminTest(t)
			caller := newTestUser(models.RoleViewer)
			privileged.On("SetRole", mock.Anything, caller.ID, mock.Anything, mock.Anything).Return(nil, tt.err)

			token := testutil.IssueToken(t, jwtSvc, caller.ID, caller.Email, models.RoleAdmin)
			rec := testutil.Serve(app, testutil.Request(t, http.MethodPost, "/admin/roles", dto.SetRoleRequest{
				TargetID: uuid.NewString(),
				Role:     "Owner",
			}, token))

			assert.Equal(t, tt.status, rec.Code)
			resp := testutil.DecodeError(t, rec)
			assert.Equal(t, string(services.KindOf(tt.err)), resp.Code)
			assert.Equal(t, services.MessageOf(tt.err), resp.Message)
		})
	}
}

func TestAdminHandler_Bootstrap_AlreadyExists(t *testing.T) {
	privileged, app, jwtSvc := setupAdminTest(t)
	caller := newTestUser(models.RoleViewer)
	privileged.On("MakeFirstAdmin", mock.Anything, caller.ID).Return(nil, services.AlreadyExists("an admin user already exists"))

	token := testutil.IssueToken(t, jwtSvc, caller.ID, caller.Email, caller.Role)
	rec := testutil.Serve(app, testutil.Request(t, http.MethodPost, "/admin/bootstrap", nil, token))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already-exists", testutil.DecodeError(t, rec).Code)
}

func TestAdminHandler_Bootstrap_Success(t *testing.T) {
	privileged, app, jwtSvc := setupAdminTest(t)
	caller := newTestUser(models.RoleAdmin)
	privileged.On("MakeFirstAdmin", mock.Anything, caller.ID).Return(caller, nil)

	token := testutil.IssueToken(t, jwtSvc, caller.ID, caller.Email, models.RoleViewer)
	rec := testutil.Serve(app, testutil.Request(t, http.MethodPost, "/admin/bootstrap", nil, token))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"Admin"`)
}

func TestAdminHandler_SyncUsers(t *testing.T) {
	privileged, app, jwtSvc := setupAdminTest(t)
	caller := newTestUser(models.RoleAdmin)
	privileged.On("SyncUsers", mock.Anything, caller.ID).Return(int64(3), nil)

	token := testutil.IssueToken(t, jwtSvc, caller.ID, caller.Email, caller.Role)
	rec := testutil.Serve(app, testutil.Request(t, http.MethodPost, "/admin/sync-users", nil, token))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.SyncUsersResponse
	testutil.DecodeJSON(t, rec, &response)
	assert.Equal(t, int64(3), response.Removed)
}

func TestAdminHandler_ListUsers(t *testing.T) {
	privileged, app, jwtSvc := setupAdminTest(t)
	caller := newTestUser(models.RoleAdmin)
	other := newTestUser(models.RoleViewer)
	privileged.On("ListProfiles", mock.Anything, caller.ID).Return([]models.User{*caller, *other}, nil)

	token := testutil.IssueToken(t, jwtSvc, caller.ID, caller.Email, caller.Role)
	rec := testutil.Serve(app, testutil.Request(t, http.MethodGet, "/admin/users", nil, token))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response []dto.ProfileResponse
	testutil.DecodeJSON(t, rec, &response)
	require.Len(t, response, 2)
	assert.Equal(t, other.ID, response[1].ID)
}

func TestAdminHandler_DeleteUser(t *testing.T) {
	privileged, app, jwtSvc := setupAdminTest(t)
	caller := newTestUser(models.RoleAdmin)
	targetID := uuid.NewString()
	privileged.On("DeleteProfile", mock.Anything, caller.ID, targetID).Return(nil)

	token := testutil.IssueToken(t, jwtSvc, caller.ID, caller.Email, caller.Role)
	rec := testutil.Serve(app, testutil.Request(t, http.MethodDelete, "/admin/users/"+targetID, nil, token))

	assert.Equal(t, http.StatusOK, rec.Code)
	privileged.AssertExpectations(t)
}

func TestAdminHandler_ResetViewCounts(t *testing.T) {
	privileged, app, jwtSvc := setupAdminTest(t)
	caller := newTestUser(models.RoleAdmin)
	privileged.On("ResetViewCounts", mock.Anything, caller.ID).Return(int64(12), nil)

	token := testutil.IssueToken(t, jwtSvc, caller.ID, caller.Email, caller.Role)
	rec := testutil.Serve(app, testutil.Request(t, http.MethodPost, "/admin/reset-view-counts", nil, token))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.ResetViewCountsResponse
	testutil.DecodeJSON(t, rec, &response)
	assert.Equal(t, int64(12), response.Updated)
}

package handlers

import (
	"net/http"

	"github.com/dimitrije/lorewiki-api/internal/middleware"
	"github.com/dimitrije/lorewiki-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

// AdminHandler exposes the privileged operations. The service authorises
// every call against the claim store.
type AdminHandler struct {
	privileged PrivilegedServiceInterface
}

func NewAdminHandler(privileged PrivilegedServiceInterface) *AdminHandler {
	return &AdminHandler{privileged: privileged}
}

func (h *AdminHandler) SetRole(c *drift.Context) {
	var req dto.SetRoleRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	user, err := h.privileged.SetRole(c.Request.Context(), middleware.GetUserID(c), req.TargetID, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	_ = c.JSON(http.StatusOK, toProfileResponse(user))
}

func (h *AdminHandler) Bootstrap(c *drift.Context) {
	user, err := h.privileged.MakeFirstAdmin(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	_ = c.JSON(http.StatusOK, toProfileResponse(user))
}

func (h *AdminHandler) SyncUsers(c *drift.Context) {
	removed, err := h.privileged.SyncUsers(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	_ = c.JSON(http.StatusOK, dto.SyncUsersResponse{Removed: removed})
}

func (h *AdminHandler) ListUsers(c *drift.Context) {
	users, err := h.privileged.ListProfiles(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]dto.ProfileResponse, len(users))
	for i := range users {
		response[i] = toProfileResponse(&users[i])
	}
	_ = c.JSON(http.StatusOK, response)
}

func (h *AdminHandler) DeleteUser(c *drift.Context) {
	if err := h.privileged.DeleteProfile(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	_ = c.JSON(http.StatusOK, dto.MessageResponse{Message: "profile deleted"})
}

func (h *AdminHandler) ResetViewCounts(c *drift.Context) {
	updated, err := h.privileged.ResetViewCounts(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	_ = c.JSON(http.StatusOK, dto.ResetViewCountsResponse{Updated: updated})
}

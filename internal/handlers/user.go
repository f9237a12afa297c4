package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/dimitrije/lorewiki-api/internal/middleware"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/dimitrije/lorewiki-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type UserHandler struct {
	accounts AccountServiceInterface
	profiles ProfileServiceInterface
	images   ImageStoreInterface
}

func NewUserHandler(accounts AccountServiceInterface, profiles ProfileServiceInterface, images ImageStoreInterface) *UserHandler {
	return &UserHandler{accounts: accounts, profiles: profiles, images: images}
}

func (h *UserHandler) GetMe(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	user, err := h.profiles.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, toProfileResponse(user))
}

// EnsureMe creates the caller's profile from their account when it is
// missing. It answers 201 when it created the record and 200 otherwise.
func (h *UserHandler) EnsureMe(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	ctx := c.Request.Context()
	account, err := h.accounts.GetByID(ctx, userID)
	if err != nil {
		if services.KindOf(err) == services.KindNotFound {
			err = services.Unauthenticated("account no longer exists")
		}
		respondError(c, err)
		return
	}

	user, created, err := h.profiles.Create(ctx, account.ID, account.Email, account.DisplayName, account.AvatarURL)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	_ = c.JSON(status, toProfileResponse(user))
}

func (h *UserHandler) UpdateMe(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			c.BadRequest("display_name cannot be empty")
			return
		}
		req.DisplayName = &name
	}
	if req.DisplayName == nil && req.AvatarURL == nil {
		c.BadRequest("nothing to update")
		return
	}

	user, err := h.profiles.UpdateIdentity(c.Request.Context(), userID, req.DisplayName, req.AvatarURL)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, toProfileResponse(user))
}

// UploadAvatar stores the raw image body and points the profile at it.
func (h *UserHandler) UploadAvatar(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	ctx := c.Request.Context()
	url, ok := uploadImage(c, h.images, services.AvatarPrefix)
	if !ok {
		return
	}

	user, err := h.profiles.UpdateIdentity(ctx, userID, nil, &url)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, toProfileResponse(user))
}

// uploadImage reads an image request body into the store under prefix. It
// writes the error response itself and reports whether the upload succeeded.
func uploadImage(c *drift.Context, images ImageStoreInterface, prefix string) (string, bool) {
	if images == nil {
		c.InternalServerError("image uploads are not configured")
		return "", false
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, services.MaxUploadBytes+1))
	if err != nil {
		c.BadRequest("failed to read request body")
		return "", false
	}
	if len(data) == 0 {
		c.BadRequest("image body is required")
		return "", false
	}
	if len(data) > services.MaxUploadBytes {
		c.BadRequest("image is too large")
		return "", false
	}

	url, err := images.UploadImage(c.Request.Context(), prefix, data, c.GetHeader("Content-Type"))
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return url, true
}

package handlers

import (
	"net/http"

	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/dimitrije/lorewiki-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindPermissionDenied: http.StatusForbidden,
	services.KindInvalidArgument:  http.StatusBadRequest,
	services.KindAlreadyExists:    http.StatusConflict,
	services.KindUnauthenticated:  http.StatusUnauthorized,
	services.KindNotFound:         http.StatusNotFound,
	services.KindInternal:         http.StatusInternalServerError,
}

// respondError writes err as a dto.ErrorResponse with the status of its kind.
func respondError(c *drift.Context, err error) {
	kind := services.KindOf(err)
	_ = c.JSON(kindStatus[kind], dto.ErrorResponse{
		Code:    string(kind),
		Message: services.MessageOf(err),
	})
}

func toProfileResponse(u *models.User) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Role:        u.Role.String(),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func toPageResponse(p *models.Page) dto.PageResponse {
	return dto.PageResponse{
		ID:                    p.ID,
		Slug:                  p.Slug,
		Title:                 p.Title,
		Body:                  p.Body,
		HeaderImageURL:        p.HeaderImageURL,
		Tags:                  p.Tags,
		AuthorID:              p.AuthorID,
		AuthorDisplayName:     p.AuthorDisplayName,
		AuthorAvatarURL:       p.AuthorAvatarURL,
		LastEditorID:          p.LastEditorID,
		LastEditorDisplayName: p.LastEditorDisplayName,
		LastEditorAvatarURL:   p.LastEditorAvatarURL,
		Status:                string(p.Status),
		ViewCount:             p.ViewCount,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

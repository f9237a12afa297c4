package handlers

import (
	"net/http"

	"github.com/dimitrije/lorewiki-api/internal/middleware"
	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/dimitrije/lorewiki-api/pkg/authz"
	"github.com/dimitrije/lorewiki-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

// PageHandler serves wiki pages. Every route runs after ResolveRole, so the
// role it checks comes from the claim store.
type PageHandler struct {
	pages    PageServiceInterface
	profiles ProfileServiceInterface
	images   ImageStoreInterface
}

func NewPageHandler(pages PageServiceInterface, profiles ProfileServiceInterface, images ImageStoreInterface) *PageHandler {
	return &PageHandler{pages: pages, profiles: profiles, images: images}
}

func entryOf(p *models.Page) *authz.Entry {
	return &authz.Entry{AuthorID: p.AuthorID, Published: p.Published()}
}

// allow evaluates the gate and writes the refusal when it fails. Drafts a
// caller may not view are reported as missing.
func allow(c *drift.Context, action authz.Action, page *models.Page) bool {
	var entry *authz.Entry
	if page != nil {
		entry = entryOf(page)
	}
	userID := middleware.GetUserID(c)
	if authz.Can(authz.Role(middleware.GetRole(c)), action, entry, userID) {
		return true
	}

	switch {
	case action == authz.ActionView:
		respondError(c, services.NotFound("page not found"))
	case userID == uuid.Nil:
		respondError(c, services.Unauthenticated("you must be signed in"))
	default:
		respondError(c, services.PermissionDenied("you may not "+string(action)+" this page"))
	}
	return false
}

// load fetches the page named by the slug parameter and checks action on it.
func (h *PageHandler) load(c *drift.Context, action authz.Action) (*models.Page, bool) {
	page, err := h.pages.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if !allow(c, authz.ActionView, page) {
		return nil, false
	}
	if action != authz.ActionView && !allow(c, action, page) {
		return nil, false
	}
	return page, true
}

// caller returns the profile that will be recorded as author or editor.
func (h *PageHandler) caller(c *drift.Context) (*models.User, bool) {
	user, err := h.profiles.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		if services.KindOf(err) == services.KindNotFound {
			err = services.NotFound("profile not found")
		}
		respondError(c, err)
		return nil, false
	}
	return user, true
}

func (h *PageHandler) List(c *drift.Context) {
	pages, err := h.pages.List(c.Request.Context(), services.PageFilter{
		Tag:           c.QueryParam("tag"),
		Query:         c.QueryParam("q"),
		IncludeDrafts: middleware.GetRole(c).CanAuthor(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]dto.PageResponse, len(pages))
	for i := range pages {
		response[i] = toPageResponse(&pages[i])
	}
	_ = c.JSON(http.StatusOK, response)
}

func (h *PageHandler) Get(c *drift.Context) {
	page, ok := h.load(c, authz.ActionView)
	if !ok {
		return
	}
	_ = c.JSON(http.StatusOK, toPageResponse(page))
}

func (h *PageHandler) View(c *drift.Context) {
	page, ok := h.load(c, authz.ActionView)
	if !ok {
		return
	}

	count, err := h.pages.IncrementViews(c.Request.Context(), page.Slug)
	if err != nil {
		respondError(c, err)
		return
	}
	_ = c.JSON(http.StatusOK, dto.ViewCountResponse{ViewCount: count})
}

func (h *PageHandler) Create(c *drift.Context) {
	if !allow(c, authz.ActionCreate, nil) {
		return
	}

	var req dto.CreatePageRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	author, ok := h.caller(c)
	if !ok {
		return
	}

	page, err := h.pages.Create(c.Request.Context(), author, services.PageInput{
		Title:          &req.Title,
		Body:           &req.Body,
		Tags:           req.Tags,
		HeaderImageURL: req.HeaderImageURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	_ = c.JSON(http.StatusCreated, toPageResponse(page))
}

func (h *PageHandler) Update(c *drift.Context) {
	page, ok := h.load(c, authz.ActionEdit)
	if !ok {
		return
	}

	var req dto.UpdatePageRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	editor, ok := h.caller(c)
	if !ok {
		return
	}

	updated, err := h.pages.Update(c.Request.Context(), page.Slug, editor, services.PageInput{
		Title:          req.Title,
		Body:           req.Body,
		Tags:           req.Tags,
		HeaderImageURL: req.HeaderImageURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	_ = c.JSON(http.StatusOK, toPageResponse(updated))
}

func (h *PageHandler) Delete(c *drift.Context) {
	page, ok := h.load(c, authz.ActionDelete)
	if !ok {
		return
	}

	if err := h.pages.Delete(c.Request.Context(), page.Slug); err != nil {
		respondError(c, err)
		return
	}
	_ = c.JSON(http.StatusOK, dto.MessageResponse{Message: "page deleted"})
}

func (h *PageHandler) Publish(c *drift.Context) {
	h.setStatus(c, authz.ActionPublish, models.PageStatusPublished)
}

func (h *PageHandler) Unpublish(c *drift.Context) {
	h.setStatus(c, authz.ActionUnpublish, models.PageStatusDraft)
}

func (h *PageHandler) setStatus(c *drift.Context, action authz.Action, status models.PageStatus) {
	page, ok := h.load(c, action)
	if !ok {
		return
	}

	updated, err := h.pages.SetStatus(c.Request.Context(), page.Slug, status)
	if err != nil {
		respondError(c, err)
		return
	}
	_ = c.JSON(http.StatusOK, toPageResponse(updated))
}

// UploadHeaderImage stores the raw image body and sets it as the page header.
func (h *PageHandler) UploadHeaderImage(c *drift.Context) {
	page, ok := h.load(c, authz.ActionEdit)
	if !ok {
		return
	}

	editor, ok := h.caller(c)
	if !ok {
		return
	}

	url, ok := uploadImage(c, h.images, services.HeaderPrefix)
	if !ok {
		return
	}

	updated, err := h.pages.Update(c.Request.Context(), page.Slug, editor, services.PageInput{HeaderImageURL: &url})
	if err != nil {
		respondError(c, err)
		return
	}
	_ = c.JSON(http.StatusOK, toPageResponse(updated))
}

func (h *PageHandler) Permissions(c *drift.Context) {
	page, ok := h.load(c, authz.ActionView)
	if !ok {
		return
	}

	role := middleware.GetRole(c)
	actions := authz.Permitted(authz.Role(role), entryOf(page), middleware.GetUserID(c))
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	_ = c.JSON(http.StatusOK, dto.PermissionsResponse{Role: role.String(), Actions: names})
}

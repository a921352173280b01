package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/service"
)

type checklistItemReq struct {
	ChecklistItemID uint64 `json:"checklist_item_id" validate:"required"`
	Label           string `json:"label"`
	RequiredCount   int    `json:"required_count" validate:"gte=0"`
}

type moduleReq struct {
	Site               model.Site         `json:"site" validate:"required,oneof=A B"`
	ModuleID           uint64             `json:"module_id" validate:"required"`
	RequiredPhotoCount int                `json:"required_photo_count" validate:"gte=0"`
	Items              []checklistItemReq `json:"items" validate:"dive"`
}

// CreateModule: POST /v1/projects/:id/modules
func (h *Handler) CreateModule(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	pid, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req moduleReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	in := service.NewModule{Site: req.Site, ModuleID: req.ModuleID, RequiredPhotoCount: req.RequiredPhotoCount}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.ChecklistItemInput(it))
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	m, err := h.Svc.CreateModule(ctx, a, pid, in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// ListModules: GET /v1/projects/:id/modules
func (h *Handler) ListModules(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	pid, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	list, err := h.Svc.ListModules(ctx, a, pid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// GetModule: GET /v1/modules/:id
func (h *Handler) GetModule(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	m, err := h.Svc.GetModule(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// DeleteModule: DELETE /v1/modules/:id
func (h *Handler) DeleteModule(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Svc.DeleteModule(ctx, a, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadPhoto: POST /v1/modules/:id/photos (multipart: photo, checklist_item_id)
func (h *Handler) UploadPhoto(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var item uint64
	if raw := c.FormValue("checklist_item_id"); raw != "" {
		if item, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return fail(c, apperr.Invalid("checklist_item_id", "must be a positive integer"))
		}
	}
	up, done, err := formFile(c, "photo", false)
	defer done()
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.Svc.UploadPhoto(ctx, a, id, item, *up)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ListPhotos: GET /v1/modules/:id/photos
func (h *Handler) ListPhotos(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	list, err := h.Svc.ListPhotos(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// DeletePhoto: DELETE /v1/photos/:id
func (h *Handler) DeletePhoto(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	m, err := h.Svc.DeletePhoto(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

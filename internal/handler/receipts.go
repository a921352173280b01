package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/export"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/service"
	"github.com/iliyamo/field-operations/internal/store"
)

// receiptReq is accepted as JSON or as a multipart form carrying an
// optional "image" file.
type receiptReq struct {
	ProjectID   uint64 `json:"project_id" form:"project_id" validate:"required"`
	AmountCents int64  `json:"amount_cents" form:"amount_cents" validate:"gt=0"`
	Category    string `json:"category" form:"category" validate:"required"`
	Description string `json:"description" form:"description"`
}

type receiptPatchReq struct {
	AmountCents *int64  `json:"amount_cents" validate:"omitnil,gt=0"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
}

// SubmitReceipt: POST /v1/receipts
func (h *Handler) SubmitReceipt(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	var req receiptReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	var img *service.Upload
	done := func() {}
	if _, ferr := c.MultipartForm(); ferr == nil {
		if img, done, err = formFile(c, "image", true); err != nil {
			return fail(c, err)
		}
	}
	defer done()
	ctx, cancel := h.ctx(c)
	defer cancel()

	r, err := h.Svc.SubmitReceipt(ctx, a, service.ReceiptInput(req), img)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// GetReceipt: GET /v1/receipts/:id
func (h *Handler) GetReceipt(c echo.Context) error {
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

	r, err := h.Svc.GetReceipt(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// ListReceipts: GET /v1/receipts?project_id=7&status=approved
func (h *Handler) ListReceipts(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	pid, err := queryID(c, "project_id")
	if err != nil {
		return fail(c, err)
	}
	f := store.ReceiptFilter{ProjectID: pid, Status: model.ReceiptStatus(c.QueryParam("status"))}
	if f.Status != "" && !f.Status.Valid() {
		return fail(c, apperr.Invalid("status", "unknown receipt status %q", f.Status))
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	list, err := h.Svc.ListReceipts(ctx, a, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// UpdateReceipt: PATCH /v1/receipts/:id
func (h *Handler) UpdateReceipt(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req receiptPatchReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	r, err := h.Svc.UpdateReceipt(ctx, a, id, service.ReceiptPatch(req))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// DeleteReceipt: DELETE /v1/receipts/:id
func (h *Handler) DeleteReceipt(c echo.Context) error {
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

	if err := h.Svc.DeleteReceipt(ctx, a, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// TransitionReceipt: POST /v1/receipts/:id/status
func (h *Handler) TransitionReceipt(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req statusReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	r, err := h.Svc.TransitionReceipt(ctx, a, id, model.ReceiptStatus(req.Status))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// ApproveReceipt: POST /v1/receipts/:id/approve
func (h *Handler) ApproveReceipt(c echo.Context) error {
	return h.decide(c, h.Svc.ApproveReceipt)
}

// RejectReceipt: POST /v1/receipts/:id/reject
func (h *Handler) RejectReceipt(c echo.Context) error {
	return h.decide(c, h.Svc.RejectReceipt)
}

func (h *Handler) decide(c echo.Context, fn func(ctx context.Context, a model.Actor, id uint64) (model.Receipt, error)) error {
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

	r, err := fn(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportReceipts: POST /v1/receipts/export?project_id=7
//
// Streams the workbook of approved receipts. The export moves them to
// exported, so it is a POST; the number of rows is in X-Exported-Count.
func (h *Handler) ExportReceipts(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	pid, err := queryID(c, "project_id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	buf, rows, err := h.Svc.ExportReceipts(ctx, a, pid)
	if err != nil {
		return fail(c, err)
	}
	name := fmt.Sprintf("receipts-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	if pid != 0 {
		name = fmt.Sprintf("receipts-p%d-%s.xlsx", pid, time.Now().UTC().Format("20060102-150405"))
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	c.Response().Header().Set("X-Exported-Count", fmt.Sprint(len(rows)))
	c.Response().Header().Set("X-Export-Sheet", export.SheetName)
	return c.Blob(http.StatusOK, xlsxType, buf.Bytes())
}

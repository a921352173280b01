package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/service"
)

type certificationReq struct {
	UserID         uint64 `json:"user_id"` // zero certifies the caller
	Name           string `json:"name" validate:"required"`
	IssuedDate     string `json:"issued_date"`                         // YYYY-MM-DD
	ExpirationDate string `json:"expiration_date" validate:"required"` // YYYY-MM-DD
	DocumentRef    string `json:"document_ref"`
}

type certificationPatchReq struct {
	Name           *string `json:"name"`
	IssuedDate     *string `json:"issued_date"`
	ExpirationDate *string `json:"expiration_date"`
	DocumentRef    *string `json:"document_ref"`
}

func parseDay(field, raw string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperr.Invalid(field, "expected YYYY-MM-DD")
	}
	return d, nil
}

func parseDayPtr(field string, raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	d, err := parseDay(field, *raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateCertification: POST /v1/certifications
func (h *Handler) CreateCertification(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	var req certificationReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	exp, err := parseDay("expiration_date", req.ExpirationDate)
	if err != nil {
		return fail(c, err)
	}
	issued, err := parseDayPtr("issued_date", &req.IssuedDate)
	if err != nil {
		return fail(c, err)
	}
	uid := req.UserID
	if uid == 0 {
		uid = a.ID
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	cert, err := h.Svc.CreateCertification(ctx, a, service.CertificationInput{
		UserID: uid, Name: req.Name, IssuedDate: issued, ExpirationDate: exp, DocumentRef: req.DocumentRef,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, cert)
}

// GetCertification: GET /v1/certifications/:id
func (h *Handler) GetCertification(c echo.Context) error {
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

	cert, err := h.Svc.GetCertification(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, cert)
}

// ListCertifications: GET /v1/certifications
func (h *Handler) ListCertifications(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	list, err := h.Svc.ListCertifications(ctx, a)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// UpdateCertification: PATCH /v1/certifications/:id
func (h *Handler) UpdateCertification(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req certificationPatchReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	p := service.CertificationPatch{Name: req.Name, DocumentRef: req.DocumentRef}
	if p.IssuedDate, err = parseDayPtr("issued_date", req.IssuedDate); err != nil {
		return fail(c, err)
	}
	if p.ExpirationDate, err = parseDayPtr("expiration_date", req.ExpirationDate); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	cert, err := h.Svc.UpdateCertification(ctx, a, id, p)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, cert)
}

// DeleteCertification: DELETE /v1/certifications/:id
func (h *Handler) DeleteCertification(c echo.Context) error {
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

	if err := h.Svc.DeleteCertification(ctx, a, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

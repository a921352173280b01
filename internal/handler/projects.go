package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/service"
	"github.com/iliyamo/field-operations/internal/store"
)

type projectReq struct {
	Code       string  `json:"code" validate:"required,max=64"`
	Name       string  `json:"name" validate:"required"`
	ManagerID  uint64  `json:"manager_id"`
	QAID       uint64  `json:"qa_id"`
	CustomerID *uint64 `json:"customer_id"`
}

type projectPatchReq struct {
	Name       *string `json:"name"`
	ManagerID  *uint64 `json:"manager_id"`
	QAID       *uint64 `json:"qa_id"`
	CustomerID *uint64 `json:"customer_id"`
}

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

type memberReq struct {
	UserID uint64 `json:"user_id" validate:"required"`
}

type reportReq struct {
	ReportDate string `json:"report_date" validate:"required"` // YYYY-MM-DD
	Summary    string `json:"summary" validate:"required"`
}

// CreateProject: POST /v1/projects
func (h *Handler) CreateProject(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	var req projectReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	p, err := h.Svc.CreateProject(ctx, a, service.NewProject(req))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// GetProject: GET /v1/projects/:id
func (h *Handler) GetProject(c echo.Context) error {
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

	p, err := h.Svc.GetProject(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ListProjects: GET /v1/projects?status=in_progress
func (h *Handler) ListProjects(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	f := store.ProjectFilter{Status: model.ProjectStatus(c.QueryParam("status"))}
	if f.Status != "" && !f.Status.Valid() {
		return fail(c, apperr.Invalid("status", "unknown project status %q", f.Status))
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	list, err := h.Svc.ListProjects(ctx, a, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// UpdateProject: PATCH /v1/projects/:id
func (h *Handler) UpdateProject(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req projectPatchReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	p, err := h.Svc.UpdateProject(ctx, a, id, service.ProjectPatch(req))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// TransitionProject: POST /v1/projects/:id/status
func (h *Handler) TransitionProject(c echo.Context) error {
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

	p, err := h.Svc.TransitionProject(ctx, a, id, model.ProjectStatus(req.Status))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// DeleteProject: DELETE /v1/projects/:id
func (h *Handler) DeleteProject(c echo.Context) error {
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

	if err := h.Svc.DeleteProject(ctx, a, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- team -----

// AddTeamMember: POST /v1/projects/:id/team
func (h *Handler) AddTeamMember(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req memberReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	m, err := h.Svc.AddTeamMember(ctx, a, id, req.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// RemoveTeamMember: DELETE /v1/projects/:id/team/:user_id
func (h *Handler) RemoveTeamMember(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	uid, err := paramID(c, "user_id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Svc.RemoveTeamMember(ctx, a, id, uid); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListTeamMembers: GET /v1/projects/:id/team
func (h *Handler) ListTeamMembers(c echo.Context) error {
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

	list, err := h.Svc.ListTeamMembers(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// ----- daily reports -----

// SubmitDailyReport: POST /v1/projects/:id/reports
func (h *Handler) SubmitDailyReport(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req reportReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	day, err := time.Parse(time.DateOnly, req.ReportDate)
	if err != nil {
		return fail(c, apperr.Invalid("report_date", "expected YYYY-MM-DD"))
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	r, err := h.Svc.SubmitDailyReport(ctx, a, id, day, req.Summary)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// ListDailyReports: GET /v1/reports?project_id=7
func (h *Handler) ListDailyReports(c echo.Context) error {
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

	list, err := h.Svc.ListDailyReports(ctx, a, pid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// GetDailyReport: GET /v1/reports/:id
func (h *Handler) GetDailyReport(c echo.Context) error {
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

	r, err := h.Svc.GetDailyReport(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// DeleteDailyReport: DELETE /v1/reports/:id
func (h *Handler) DeleteDailyReport(c echo.Context) error {
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

	if err := h.Svc.DeleteDailyReport(ctx, a, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/service"
)

type vehicleReq struct {
	PlateNumber string `json:"plate_number" validate:"required"`
	Model       string `json:"model"`
	Mileage     int    `json:"mileage" validate:"gte=0"`
}

type vehiclePatchReq struct {
	PlateNumber *string `json:"plate_number"`
	Model       *string `json:"model"`
	Mileage     *int    `json:"mileage" validate:"omitnil,gte=0"`
}

type assignReq struct {
	UserID uint64 `json:"user_id"` // zero assigns to the caller
}

type returnReq struct {
	EndingMileage int `json:"ending_mileage" validate:"gte=0"`
}

type walkaroundReq struct {
	Type      model.InspectionType `json:"type" validate:"required,oneof=checkout checkin"`
	Mileage   int                  `json:"mileage" validate:"gte=0"`
	HasDamage bool                 `json:"has_damage"`
	FuelLow   bool                 `json:"fuel_low"`
	Notes     string               `json:"notes"`
	PhotoRefs []string             `json:"photo_refs"`
}

type damageReq struct {
	Location    string `json:"location" validate:"required"`
	Severity    string `json:"severity" validate:"required"`
	Description string `json:"description"`
	PhotoRef    string `json:"photo_ref"`
}

type inspectionReq struct {
	Mileage int         `json:"mileage" validate:"gte=0"`
	Passed  bool        `json:"passed"`
	Notes   string      `json:"notes"`
	Damages []damageReq `json:"damages" validate:"dive"`
}

// CreateVehicle: POST /v1/vehicles
func (h *Handler) CreateVehicle(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	var req vehicleReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	v, err := h.Svc.CreateVehicle(ctx, a, service.VehicleInput(req))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// GetVehicle: GET /v1/vehicles/:id
func (h *Handler) GetVehicle(c echo.Context) error {
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

	v, err := h.Svc.GetVehicle(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// ListVehicles: GET /v1/vehicles
func (h *Handler) ListVehicles(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	list, err := h.Svc.ListVehicles(ctx, a)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// UpdateVehicle: PATCH /v1/vehicles/:id
func (h *Handler) UpdateVehicle(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req vehiclePatchReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	v, err := h.Svc.UpdateVehicle(ctx, a, id, service.VehiclePatch(req))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// AssignVehicle: POST /v1/vehicles/:id/assignments
func (h *Handler) AssignVehicle(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req assignReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	as, err := h.Svc.AssignVehicle(ctx, a, id, req.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, as)
}

// ListAssignments: GET /v1/assignments
func (h *Handler) ListAssignments(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	list, err := h.Svc.ListAssignments(ctx, a)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// GetAssignment: GET /v1/assignments/:id
func (h *Handler) GetAssignment(c echo.Context) error {
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

	as, err := h.Svc.GetAssignment(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, as)
}

// ReturnVehicle: POST /v1/assignments/:id/return
func (h *Handler) ReturnVehicle(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req returnReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	as, err := h.Svc.ReturnVehicle(ctx, a, id, req.EndingMileage)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, as)
}

// RecordWalkaround: POST /v1/assignments/:id/walkarounds
func (h *Handler) RecordWalkaround(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req walkaroundReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	w, err := h.Svc.RecordWalkaround(ctx, a, id, service.WalkaroundInput(req))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, w)
}

// ListWalkarounds: GET /v1/assignments/:id/walkarounds
func (h *Handler) ListWalkarounds(c echo.Context) error {
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

	list, err := h.Svc.ListWalkarounds(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// RecordRegularInspection: POST /v1/vehicles/:id/inspections
func (h *Handler) RecordRegularInspection(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req inspectionReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	in := service.RegularInspectionInput{Mileage: req.Mileage, Passed: req.Passed, Notes: req.Notes}
	for _, d := range req.Damages {
		in.Damages = append(in.Damages, service.DamageInput(d))
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	ins, err := h.Svc.RecordRegularInspection(ctx, a, id, in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, ins)
}

// ListRegularInspections: GET /v1/vehicles/:id/inspections
func (h *Handler) ListRegularInspections(c echo.Context) error {
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

	list, err := h.Svc.ListRegularInspections(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// GetRegularInspection: GET /v1/inspections/:id
func (h *Handler) GetRegularInspection(c echo.Context) error {
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

	ins, err := h.Svc.GetRegularInspection(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, ins)
}

// DeleteRegularInspection: DELETE /v1/inspections/:id
func (h *Handler) DeleteRegularInspection(c echo.Context) error {
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

	if err := h.Svc.DeleteRegularInspection(ctx, a, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

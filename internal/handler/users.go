package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/service"
)

type createUserReq struct {
	Email               string     `json:"email" validate:"required,email"`
	Password            string     `json:"password" validate:"required,min=8"`
	Name                string     `json:"name" validate:"required"`
	Phone               string     `json:"phone"`
	Role                model.Role `json:"role" validate:"required"`
	CustomerAffiliation *uint64    `json:"customer_affiliation"`
}

type updateUserReq struct {
	Name                *string     `json:"name"`
	Phone               *string     `json:"phone"`
	Role                *model.Role `json:"role"`
	Active              *bool       `json:"active"`
	CustomerAffiliation *uint64     `json:"customer_affiliation"`
}

type contactReq struct {
	Name         string `json:"name" validate:"required"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone" validate:"required"`
}

type equipmentReq struct {
	UserID       uint64 `json:"user_id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	SerialNumber string `json:"serial_number"`
}

type equipmentPatchReq struct {
	Name         *string `json:"name"`
	SerialNumber *string `json:"serial_number"`
}

// CreateUser: POST /v1/users
func (h *Handler) CreateUser(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	var req createUserReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Svc.CreateUser(ctx, a, service.NewUser{
		Email:               req.Email,
		Password:            req.Password,
		Name:                req.Name,
		Phone:               req.Phone,
		Role:                req.Role,
		CustomerAffiliation: req.CustomerAffiliation,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// GetUser: GET /v1/users/:id
func (h *Handler) GetUser(c echo.Context) error {
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

	u, err := h.Svc.GetUser(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// ListUsers: GET /v1/users
func (h *Handler) ListUsers(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	users, err := h.Svc.ListUsers(ctx, a)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": users})
}

// UpdateUser: PATCH /v1/users/:id
func (h *Handler) UpdateUser(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req updateUserReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Svc.UpdateUser(ctx, a, id, service.UserPatch{
		Name:                req.Name,
		Phone:               req.Phone,
		Role:                req.Role,
		Active:              req.Active,
		CustomerAffiliation: req.CustomerAffiliation,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// DeactivateUser: DELETE /v1/users/:id
func (h *Handler) DeactivateUser(c echo.Context) error {
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

	if err := h.Svc.DeactivateUser(ctx, a, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- emergency contacts -----

// AddEmergencyContact: POST /v1/users/:id/contacts
func (h *Handler) AddEmergencyContact(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	uid, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req contactReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	ec, err := h.Svc.AddEmergencyContact(ctx, a, uid, service.ContactInput(req))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, ec)
}

// ListEmergencyContacts: GET /v1/users/:id/contacts
func (h *Handler) ListEmergencyContacts(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	uid, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	list, err := h.Svc.ListEmergencyContacts(ctx, a, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// UpdateEmergencyContact: PUT /v1/contacts/:id
func (h *Handler) UpdateEmergencyContact(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req contactReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	ec, err := h.Svc.UpdateEmergencyContact(ctx, a, id, service.ContactInput(req))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, ec)
}

// DeleteEmergencyContact: DELETE /v1/contacts/:id
func (h *Handler) DeleteEmergencyContact(c echo.Context) error {
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

	if err := h.Svc.DeleteEmergencyContact(ctx, a, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- equipment -----

// IssueEquipment: POST /v1/equipment
func (h *Handler) IssueEquipment(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	var req equipmentReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	e, err := h.Svc.IssueEquipment(ctx, a, service.EquipmentInput(req))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

// GetEquipment: GET /v1/equipment/:id
func (h *Handler) GetEquipment(c echo.Context) error {
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

	e, err := h.Svc.GetEquipment(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// ListEquipment: GET /v1/equipment
func (h *Handler) ListEquipment(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	list, err := h.Svc.ListEquipment(ctx, a)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// UpdateEquipment: PATCH /v1/equipment/:id
func (h *Handler) UpdateEquipment(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req equipmentPatchReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	e, err := h.Svc.UpdateEquipment(ctx, a, id, req.Name, req.SerialNumber)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// SignEquipment: POST /v1/equipment/:id/signature (multipart field "signature")
func (h *Handler) SignEquipment(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	up, done, err := formFile(c, "signature", false)
	defer done()
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	e, err := h.Svc.SignEquipment(ctx, a, id, *up)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// DeleteEquipment: DELETE /v1/equipment/:id
func (h *Handler) DeleteEquipment(c echo.Context) error {
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

	if err := h.Svc.DeleteEquipment(ctx, a, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

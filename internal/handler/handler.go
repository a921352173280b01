package handler // handler defines http handlers

import (
    "context"
    "errors"
    "strconv" // strconv converts path parameters to numeric ids
    "time"

    "github.com/labstack/echo/v4" // echo defines request context types

    "github.com/iliyamo/field-operations/internal/apperr"
    "github.com/iliyamo/field-operations/internal/middleware"
    "github.com/iliyamo/field-operations/internal/model"
    "github.com/iliyamo/field-operations/internal/service"
)

// Handler bundles the lifecycle services behind every HTTP endpoint.
type Handler struct {
    Svc     *service.Service
    Timeout time.Duration // per-request deadline for store calls
}

// New constructs a Handler and panics if the service is nil.
func New(svc *service.Service, timeout time.Duration) *Handler {
    if svc == nil {
        panic("nil service passed to handler.New")
    }
    if timeout <= 0 {
        timeout = 5 * time.Second
    }
    return &Handler{Svc: svc, Timeout: timeout}
}

// ctx derives the store deadline from the request context.
func (h *Handler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// actor returns the authenticated actor. Routes that call it sit behind
// middleware.Authenticate, so a missing actor is a wiring fault.
func actor(c echo.Context) (model.Actor, error) {
    a, ok := middleware.ActorFrom(c)
    if !ok {
        return model.Actor{}, errors.New("handler: no actor in request context")
    }
    return a, nil
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, error) {
    n, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || n == 0 {
        return 0, apperr.Invalid(name, "must be a positive integer")
    }
    return n, nil
}

// queryID parses an optional numeric query parameter; absent means zero.
func queryID(c echo.Context, name string) (uint64, error) {
    raw := c.QueryParam(name)
    if raw == "" {
        return 0, nil
    }
    n, err := strconv.ParseUint(raw, 10, 64)
    if err != nil {
        return 0, apperr.Invalid(name, "must be a positive integer")
    }
    return n, nil
}

// bind decodes the request body into req and runs the registered validator.
func bind(c echo.Context, req any) error {
    if err := c.Bind(req); err != nil {
        return apperr.Invalid("body", "invalid body")
    }
    return c.Validate(req)
}

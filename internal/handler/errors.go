package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/field-operations/internal/apperr"
    "github.com/iliyamo/field-operations/internal/service"
)

var kindStatus = map[apperr.Kind]int{
    apperr.KindNotFound:     http.StatusNotFound,
    apperr.KindAccessDenied: http.StatusForbidden,
    apperr.KindValidation:   http.StatusBadRequest,
    apperr.KindConflict:     http.StatusConflict,
    apperr.KindTransient:    http.StatusServiceUnavailable,
}

// fail writes the JSON error response for err. Errors without a kind are
// unexpected faults: they are logged and answered with a generic 500.
func fail(c echo.Context, err error) error {
    if errors.Is(err, service.ErrInvalidCredentials) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated", "message": "invalid credentials"})
    }
    e, ok := apperr.As(err)
    if !ok {
        logrus.WithFields(logrus.Fields{
            "method": c.Request().Method,
            "path":   c.Path(),
        }).Errorf("unexpected error: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal error"})
    }

    body := echo.Map{"error": string(e.Kind), "message": e.Reason}
    if e.Reason == "" {
        body["message"] = string(e.Kind)
    }
    if e.Field != "" {
        body["field"] = e.Field
    }
    if e.Kind == apperr.KindTransient {
        body["retryable"] = true
        logrus.WithField("path", c.Path()).Warnf("transient failure: %v", err)
    }
    return c.JSON(kindStatus[e.Kind], body)
}

// ErrorHandler renders errors that escape handlers, such as unknown routes
// or framework errors, in the same body shape as fail.
func ErrorHandler(err error, c echo.Context) {
    if c.Response().Committed {
        return
    }
    var he *echo.HTTPError
    if errors.As(err, &he) {
        msg, _ := he.Message.(string)
        if msg == "" {
            msg = http.StatusText(he.Code)
        }
        _ = c.JSON(he.Code, echo.Map{"error": http.StatusText(he.Code), "message": msg})
        return
    }
    _ = fail(c, err)
}

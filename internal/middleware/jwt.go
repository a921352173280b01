package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
)

// ActorResolver turns a raw bearer token into the acting user.
type ActorResolver interface {
	ResolveToken(ctx context.Context, raw string) (model.Actor, error)
}

// Authenticate returns an Echo middleware that validates a Bearer access
// token and stores the acting user in the request context. The user is
// reloaded on every request, so a deactivated account is rejected even
// while its token is still within its lifetime. Handlers read the actor
// with ActorFrom.
func Authenticate(r ActorResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated", "message": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			actor, err := r.ResolveToken(c.Request().Context(), raw)
			if err != nil {
				// A store outage is not the client's fault; let it retry.
				if apperr.KindOf(err) == apperr.KindTransient {
					return c.JSON(http.StatusServiceUnavailable, echo.Map{
						"error": "transient", "message": "identity store unavailable", "retryable": true,
					})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated", "message": "invalid token"})
			}

			SetActor(c, actor)
			return next(c)
		}
	}
}

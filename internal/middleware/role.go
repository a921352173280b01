package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/iliyamo/field-operations/internal/model"
)

// RequireRole returns a middleware function that enforces that the
// authenticated actor has one of the specified roles. It is a coarse gate
// for whole route groups (for example the admin console); record level
// decisions stay with the policy engine. It assumes Authenticate ran first.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	// Build a set of allowed roles for constant-time lookups.
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a, ok := ActorFrom(c)
			if !ok || !a.Active || !allowed[a.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "access_denied", "message": "role not permitted"})
			}
			return next(c)
		}
	}
}

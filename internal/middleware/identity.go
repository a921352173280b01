package middleware

// identity.go holds the context keys shared by the middleware in this
// package. Authenticate stores the resolved model.Actor under actorKey and
// the user id as a string under "user_id" for the rate limiter and the
// request logger.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-operations/internal/model"
)

const actorKey = "actor"

// ActorFrom returns the actor resolved for this request.
func ActorFrom(c echo.Context) (model.Actor, bool) {
	a, ok := c.Get(actorKey).(model.Actor)
	return a, ok
}

// SetActor stores the actor resolved for this request.
func SetActor(c echo.Context, a model.Actor) {
	c.Set(actorKey, a)
	c.Set("user_id", strconv.FormatUint(a.ID, 10))
}

// userID returns the string id of the authenticated user, or "guest".
func userID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		return v
	}
	return "guest"
}

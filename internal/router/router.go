package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/field-operations/internal/handler"    // import the handlers that implement the endpoints
	"github.com/iliyamo/field-operations/internal/middleware" // import middleware for authentication and role enforcement
	"github.com/iliyamo/field-operations/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, p handler.Pinger) {
	// Load balancers probe /healthz; it reports 503 while the store is down.
	e.GET("/healthz", handler.Health(p))
}

// RegisterAuth registers the session endpoints under /v1/auth. login and
// refresh take the limiter so credential guessing is throttled per client;
// pass a pass-through middleware to disable it.
func RegisterAuth(e *echo.Echo, h *handler.Handler, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/login", h.Login, limiter)
	g.POST("/refresh", h.Refresh, limiter)
	// Logout needs only the refresh token being revoked.
	g.POST("/logout", h.Logout)
}

// RegisterAPI registers every authenticated endpoint under /v1. The
// resolver turns the bearer token into the acting user; record level
// decisions are made by the services, so most groups only need
// authentication. The admin console group is also gated by role.
func RegisterAPI(e *echo.Echo, h *handler.Handler, resolver middleware.ActorResolver) *echo.Group {
	v1 := e.Group("/v1", middleware.Authenticate(resolver))

	v1.GET("/me", h.Me)
	v1.POST("/me/password", h.ChangePassword)

	registerPeople(v1, h)
	registerProjects(v1, h)
	registerFleet(v1, h)
	registerRecords(v1, h)
	return v1
}

func registerPeople(v1 *echo.Group, h *handler.Handler) {
	// Creating accounts and issuing equipment are admin operations.
	adminOnly := middleware.RequireRole(model.RoleAdmin)
	v1.POST("/users", h.CreateUser, adminOnly)
	v1.POST("/equipment", h.IssueEquipment, adminOnly)

	v1.GET("/users", h.ListUsers)
	v1.GET("/users/:id", h.GetUser)
	v1.PATCH("/users/:id", h.UpdateUser)
	v1.DELETE("/users/:id", h.DeactivateUser)

	v1.GET("/users/:id/contacts", h.ListEmergencyContacts)
	v1.POST("/users/:id/contacts", h.AddEmergencyContact)
	v1.PUT("/contacts/:id", h.UpdateEmergencyContact)
	v1.DELETE("/contacts/:id", h.DeleteEmergencyContact)

	v1.GET("/equipment", h.ListEquipment)
	v1.GET("/equipment/:id", h.GetEquipment)
	v1.PATCH("/equipment/:id", h.UpdateEquipment)
	v1.POST("/equipment/:id/signature", h.SignEquipment)
	v1.DELETE("/equipment/:id", h.DeleteEquipment)
}

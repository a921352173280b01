package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-operations/internal/handler"
)

// registerFleet wires vehicles, assignments and both kinds of inspection.
func registerFleet(v1 *echo.Group, h *handler.Handler) {
	v1.GET("/vehicles", h.ListVehicles)
	v1.POST("/vehicles", h.CreateVehicle)
	v1.GET("/vehicles/:id", h.GetVehicle)
	v1.PATCH("/vehicles/:id", h.UpdateVehicle)

	v1.POST("/vehicles/:id/assignments", h.AssignVehicle)
	v1.GET("/assignments", h.ListAssignments)
	v1.GET("/assignments/:id", h.GetAssignment)
	v1.POST("/assignments/:id/return", h.ReturnVehicle)
	v1.GET("/assignments/:id/walkarounds", h.ListWalkarounds)
	v1.POST("/assignments/:id/walkarounds", h.RecordWalkaround)

	v1.GET("/vehicles/:id/inspections", h.ListRegularInspections)
	v1.POST("/vehicles/:id/inspections", h.RecordRegularInspection)
	v1.GET("/inspections/:id", h.GetRegularInspection)
	v1.DELETE("/inspections/:id", h.DeleteRegularInspection)
}

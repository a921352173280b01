package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-operations/internal/handler"
)

// registerProjects wires projects with their team, site modules, photos and
// daily reports.
func registerProjects(v1 *echo.Group, h *handler.Handler) {
	v1.GET("/projects", h.ListProjects)
	v1.POST("/projects", h.CreateProject)
	v1.GET("/projects/:id", h.GetProject)
	v1.PATCH("/projects/:id", h.UpdateProject)
	v1.DELETE("/projects/:id", h.DeleteProject)
	v1.POST("/projects/:id/status", h.TransitionProject)

	v1.GET("/projects/:id/team", h.ListTeamMembers)
	v1.POST("/projects/:id/team", h.AddTeamMember)
	v1.DELETE("/projects/:id/team/:user_id", h.RemoveTeamMember)

	v1.GET("/projects/:id/modules", h.ListModules)
	v1.POST("/projects/:id/modules", h.CreateModule)
	v1.GET("/modules/:id", h.GetModule)
	v1.DELETE("/modules/:id", h.DeleteModule)
	v1.GET("/modules/:id/photos", h.ListPhotos)
	v1.POST("/modules/:id/photos", h.UploadPhoto)
	v1.DELETE("/photos/:id", h.DeletePhoto)

	v1.POST("/projects/:id/reports", h.SubmitDailyReport)
	v1.GET("/reports", h.ListDailyReports)
	v1.GET("/reports/:id", h.GetDailyReport)
	v1.DELETE("/reports/:id", h.DeleteDailyReport)
}

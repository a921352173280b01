package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-operations/internal/handler"
)

// registerRecords wires certifications and expense receipts.
func registerRecords(v1 *echo.Group, h *handler.Handler) {
	v1.GET("/certifications", h.ListCertifications)
	v1.POST("/certifications", h.CreateCertification)
	v1.GET("/certifications/:id", h.GetCertification)
	v1.PATCH("/certifications/:id", h.UpdateCertification)
	v1.DELETE("/certifications/:id", h.DeleteCertification)

	v1.GET("/receipts", h.ListReceipts)
	v1.POST("/receipts", h.SubmitReceipt)
	v1.POST("/receipts/export", h.ExportReceipts)
	v1.GET("/receipts/:id", h.GetReceipt)
	v1.PATCH("/receipts/:id", h.UpdateReceipt)
	v1.DELETE("/receipts/:id", h.DeleteReceipt)
	v1.POST("/receipts/:id/status", h.TransitionReceipt)
	v1.POST("/receipts/:id/approve", h.ApproveReceipt)
	v1.POST("/receipts/:id/reject", h.RejectReceipt)
}

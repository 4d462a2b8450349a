package router

import (
	"github.com/labstack/echo/v4"

	"github.com/ticketon/backend/internal/handler"
	"github.com/ticketon/backend/internal/middleware"
	"github.com/ticketon/backend/internal/model"
)

// RegisterOrganizer registers event management, voucher issuance and
// payment review.  Everything here requires an ORGANIZER token.
func RegisterOrganizer(e *echo.Echo, h *handler.OrganizerHandler, jwtSecret string) {
	g := e.Group("/v1/organizer")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleOrganizer))

	g.POST("/events", h.CreateEvent)
	g.GET("/events", h.ListMyEvents)
	g.PUT("/events/:id", h.UpdateEvent)
	g.DELETE("/events/:id", h.DeleteEvent)

	g.POST("/events/:id/vouchers", h.CreateVoucher)
	g.GET("/events/:id/vouchers", h.ListVouchers)

	g.GET("/transactions", h.ListTransactions)
	g.POST("/transactions/:id/approve", h.ApproveTransaction)
	g.POST("/transactions/:id/reject", h.RejectTransaction)
}

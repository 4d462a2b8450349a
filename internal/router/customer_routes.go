package router

import (
	"github.com/labstack/echo/v4"

	"github.com/ticketon/backend/internal/handler"
	"github.com/ticketon/backend/internal/middleware"
	"github.com/ticketon/backend/internal/model"
)

// RegisterCustomer registers the customer-facing purchase lifecycle
// and reward endpoints.  Everything here requires a CUSTOMER token.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, jwtSecret string) {
	g := e.Group("/v1/customer")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleCustomer))

	g.POST("/transactions", h.CreateTransaction)
	g.GET("/transactions", h.ListTransactions)
	g.GET("/transactions/:id", h.GetTransaction)
	g.POST("/transactions/:id/payment-proof", h.SubmitProof)
	g.POST("/transactions/:id/cancel", h.CancelTransaction)

	g.GET("/points", h.ListPoints)
	g.GET("/coupons/:code", h.ValidateCoupon)
}

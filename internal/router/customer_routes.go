package router

import (
	"github.com/labstack/echo/v4"

	"github.com/avelmor/ticket-escrow/internal/handler"
	"github.com/avelmor/ticket-escrow/internal/middleware"
)

// RegisterCustomer registers the buyer-side endpoints under /v1. Owners may
// buy tickets too, so both roles are accepted.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("CUSTOMER", "OWNER"),
	)

	g.POST("/events/:id/tickets", h.BuyTicket)
	g.POST("/events/:id/tickets/token", h.BuyTicketViaToken)
	g.POST("/events/:id/refund", h.RequestRefund)
	g.POST("/tokens/approve", h.ApproveToken)
	g.GET("/my/tickets", h.MyTickets)
}

package router

import (
	"github.com/labstack/echo/v4"

	"github.com/avelmor/ticket-escrow/internal/handler"
	"github.com/avelmor/ticket-escrow/internal/middleware"
)

// RegisterAdmin registers the asset administration endpoints. ADMIN only.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
	)

	g.GET("/assets", h.ListAssets)
	g.POST("/assets/mint", h.Mint)
}

package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/avelmor/ticket-escrow/internal/handler"
	"github.com/avelmor/ticket-escrow/internal/middleware"
)

// RegisterOwner registers OWNER-scoped endpoints under /v1.
// All routes require a valid JWT and OWNER role.
func RegisterOwner(e *echo.Echo, o *handler.OwnerHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("OWNER"),
	)

	g.POST("/events", o.CreateEvent)
	g.POST("/events/:id/cancel", o.CancelEvent)
	g.POST("/events/:id/release", o.ReleaseFunds)
	g.POST("/events/:id/archive", o.ArchiveEvent)
	g.GET("/my/events", o.MyEvents)
}

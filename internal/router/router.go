package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/coursehub/lms-admin-session/internal/handler"
	"github.com/coursehub/lms-admin-session/internal/middleware"
	"github.com/coursehub/lms-admin-session/internal/model"
)

// RegisterRoutes registers the unauthenticated health endpoints.
func RegisterRoutes(e *echo.Echo, ready *handler.ReadyHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", ready.Ready)
}

// RegisterAdmin registers the super-admin session endpoints under
// /v1/admin.  Login sits behind loginLimit (the Redis token bucket).
// Logout and verify read the bearer token themselves; every other route
// is gated by RequireSession and the super_admin role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, p *handler.ProfileHandler, loginLimit echo.MiddlewareFunc, logger *slog.Logger) {
	g := e.Group("/v1/admin")
	if loginLimit != nil {
		g.POST("/login", a.Login, loginLimit)
	} else {
		g.POST("/login", a.Login)
	}
	g.POST("/logout", a.Logout)
	g.GET("/verify", a.Verify)

	priv := g.Group("",
		middleware.RequireSession(a.Auth, logger),
		middleware.RequireRole(model.RoleSuperAdmin),
	)
	priv.GET("/profile", p.Get)
	priv.PUT("/profile", p.Update)
}

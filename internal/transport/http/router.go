package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/devclub/orgsite/internal/db"
	authhdl "github.com/devclub/orgsite/internal/handlers/auth"
	authmw "github.com/devclub/orgsite/internal/middleware/auth"
	"github.com/devclub/orgsite/internal/middleware/csrf"
	"github.com/devclub/orgsite/internal/tokens"
)

type Deps struct {
	DB          *gorm.DB
	AuthHandler *authhdl.AuthHandler
	Tokens      *tokens.Issuer
	CSRF        csrf.Config
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", ready(d.DB))

	requireLogin := authmw.RequireLogin(d.Tokens)

	api := e.Group("/api", csrf.Middleware(d.CSRF))

	auth := api.Group("/auth")
	auth.GET("/csrf", csrf.Provision(d.CSRF))
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.LogOut)
	auth.GET("/me", d.AuthHandler.Me, requireLogin)
	auth.GET("/sessions", d.AuthHandler.Sessions, requireLogin)

	admin := api.Group("/admin", requireLogin, authmw.RequireRole("admin"))
	admin.DELETE("/users/:id/sessions", d.AuthHandler.RevokeUserSessions)
}

func ready(gdb *gorm.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		if gdb == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx, gdb); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
		}
		return c.NoContent(http.StatusOK)
	}
}

package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/devclub/orgsite/internal/logging"
)

// RequireRole must run after RequireLogin.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			if !claims.HasRole(role) {
				logging.FromContext(c.Request().Context()).Warn("access_denied",
					"status", 403, "role", role, "user", claims.Subject)
				return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights")
			}
			return next(c)
		}
	}
}

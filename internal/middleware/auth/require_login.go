package auth

import (
	"net/http"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/devclub/orgsite/internal/logging"
	"github.com/devclub/orgsite/internal/tokens"
)

const bearerPrefix = "Bearer "

// RequireLogin verifies the bearer access token and stores its claims under ContextKey.
func RequireLogin(issuer *tokens.Issuer) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  ContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":" + bearerPrefix,
		ParseTokenFunc: func(_ echo.Context, raw string) (interface{}, error) {
			return issuer.Verify(raw)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			l := logging.FromContext(c.Request().Context()).With("middleware", "require_login")
			if !hasBearer(c.Request()) {
				l.Warn("auth_failed", "status", 401, "reason", "missing_token")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			l.Warn("auth_failed", "status", 401, "reason", "invalid_token", "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		},
	})
}

func hasBearer(r *http.Request) bool {
	h := r.Header.Get(echo.HeaderAuthorization)
	if len(h) <= len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return false
	}
	return strings.TrimSpace(h[len(bearerPrefix):]) != ""
}

package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/devclub/orgsite/internal/tokens"
)

const ContextKey = "user"

func ClaimsFrom(c echo.Context) (*tokens.AccessClaims, bool) {
	claims, ok := c.Get(ContextKey).(*tokens.AccessClaims)
	return claims, ok && claims != nil
}

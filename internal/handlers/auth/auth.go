package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/devclub/orgsite/internal/logging"
	authmw "github.com/devclub/orgsite/internal/middleware/auth"
	"github.com/devclub/orgsite/internal/repo"
	"github.com/devclub/orgsite/internal/service"
	"github.com/devclub/orgsite/internal/tokens"
	"github.com/devclub/orgsite/internal/transport"
)

type AuthHandler struct {
	Svc     *service.AuthService
	Cookies CookieConfig
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
	}

	res, err := h.Svc.Login(ctx, req, sessionMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			l.Warn("login_failed", "status", 400, "reason", "invalid_input")
			return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
		case errors.Is(err, service.ErrInvalidCredentials):
			l.Warn("login_failed", "status", 401, "reason", "invalid_credentials")
			return echo.NewHTTPError(http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
		default:
			l.Error("login_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	c.SetCookie(h.Cookies.CreateCookie(res.RefreshToken, res.RefreshExp))
	l.Info("login_successful", "user_id", res.User.ID)

	return c.JSON(http.StatusOK, echo.Map{
		"accessToken": res.AccessToken,
		"user":        res.User,
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	cookie, err := c.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		l.Warn("refresh_failed", "status", 401, "reason", "missing_refresh_cookie")
		c.SetCookie(h.Cookies.DeleteCookie())
		return echo.NewHTTPError(http.StatusUnauthorized, service.ErrInvalidRefreshToken.Error())
	}

	res, err := h.Svc.Refresh(ctx, cookie.Value, sessionMeta(c))
	if err != nil {
		c.SetCookie(h.Cookies.DeleteCookie())
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			l.Warn("refresh_failed", "status", 401)
			return echo.NewHTTPError(http.StatusUnauthorized, service.ErrInvalidRefreshToken.Error())
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.SetCookie(h.Cookies.CreateCookie(res.RefreshToken, res.RefreshExp))
	l.Info("refresh_successful")

	return c.JSON(http.StatusOK, echo.Map{
		"accessToken": res.AccessToken,
	})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if cookie, err := c.Cookie(RefreshCookieName); err == nil {
		h.Svc.Logout(ctx, cookie.Value)
	}

	c.SetCookie(h.Cookies.DeleteCookie())
	l.Info("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *AuthHandler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_me")

	claims, _ := authmw.ClaimsFrom(c)
	user, err := h.Svc.Me(ctx, claims)
	if err != nil {
		return claimsError(l, "me_failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

func (h *AuthHandler) Sessions(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_sessions")

	claims, ok := authmw.ClaimsFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	sessions, err := h.Svc.ListSessions(ctx, claims)
	if err != nil {
		return claimsError(l, "sessions_failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": sessions})
}

func (h *AuthHandler) RevokeUserSessions(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_revoke_sessions")

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		l.Warn("revoke_failed", "status", 400, "reason", "bad_id", "id", c.Param("id"))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
	}

	n, err := h.Svc.RevokeUserSessions(ctx, uint(id))
	if err != nil {
		l.Error("revoke_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "revoked": n})
}

func claimsError(l *slog.Logger, event string, err error) error {
	switch {
	case errors.Is(err, tokens.ErrMissingToken):
		l.Warn(event, "status", 401, "reason", "missing_token")
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	case errors.Is(err, tokens.ErrInvalidToken):
		l.Warn(event, "status", 401, "reason", "invalid_token")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	default:
		l.Error(event, "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func sessionMeta(c echo.Context) repo.SessionMeta {
	return repo.SessionMeta{
		UserAgent: c.Request().UserAgent(),
		IP:        c.RealIP(),
	}
}

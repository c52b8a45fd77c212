package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/devclub/orgsite/internal/logging"
)

const tokenBytes = 20

type Config struct {
	CookieName string
	HeaderName string

	CookiePath string
	Domain     string
	Secure     bool
	SameSite   http.SameSite
}

func DefaultConfig() Config {
	return Config{
		CookieName: "csrf_token",
		HeaderName: "X-CSRF-Token",
		CookiePath: "/",
		Secure:     true,
		SameSite:   http.SameSiteLaxMode,
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = def.HeaderName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = def.CookiePath
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = def.SameSite
	}
	return cfg
}

// Middleware enforces the double-submit check on state-changing methods:
// the cookie and the header must both be present and equal.
func Middleware(cfg Config) echo.MiddlewareFunc {
	cfg = cfg.withDefaults()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			switch strings.ToUpper(req.Method) {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			cookie := readCookie(req, cfg.CookieName)
			provided := req.Header.Get(cfg.HeaderName)
			if !secureCompare(cookie, provided) {
				logging.FromContext(req.Context()).Warn("csrf_rejected",
					"status", http.StatusForbidden,
					"has_cookie", cookie != "",
					"has_header", provided != "",
				)
				return echo.NewHTTPError(http.StatusForbidden, "invalid csrf token")
			}
			return next(c)
		}
	}
}

// Provision returns a handler that sets the CSRF cookie when it is absent and
// reports the token in effect. Calling it again keeps the existing token.
func Provision(cfg Config) echo.HandlerFunc {
	cfg = cfg.withDefaults()

	return func(c echo.Context) error {
		token := readCookie(c.Request(), cfg.CookieName)
		if token == "" {
			var err error
			token, err = newToken(tokenBytes)
			if err != nil {
				logging.FromContext(c.Request().Context()).Error("csrf_token_failed", "status", 500, "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
			}
			setCSRFCookie(c, cfg, token)
		}
		return c.JSON(http.StatusOK, echo.Map{"csrfToken": token})
	}
}

func newToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Session cookie: no MaxAge, dropped with the browser session.
func setCSRFCookie(c echo.Context, cfg Config, token string) {
	c.SetCookie(&http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     cfg.CookiePath,
		Domain:   cfg.Domain,
		Secure:   cfg.Secure,
		HttpOnly: false,
		SameSite: cfg.SameSite,
	})
}

func readCookie(req *http.Request, name string) string {
	c, err := req.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func secureCompare(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

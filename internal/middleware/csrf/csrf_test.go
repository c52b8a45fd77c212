package csrf

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func newEcho(cfg Config) *echo.Echo {
	e := echo.New()
	g := e.Group("", Middleware(cfg))
	g.GET("/r", okHandler)
	g.POST("/w", okHandler)
	e.GET("/csrf", Provision(cfg))
	return e
}

func TestMiddleware(t *testing.T) {
	e := newEcho(Config{})

	tests := []struct {
		name   string
		method string
		path   string
		cookie string
		header string
		want   int
	}{
		{name: "get bypasses", method: http.MethodGet, path: "/r", want: http.StatusOK},
		{name: "post without anything", method: http.MethodPost, path: "/w", want: http.StatusForbidden},
		{name: "post with cookie only", method: http.MethodPost, path: "/w", cookie: "abc", want: http.StatusForbidden},
		{name: "post with header only", method: http.MethodPost, path: "/w", header: "abc", want: http.StatusForbidden},
		{name: "post with mismatch", method: http.MethodPost, path: "/w", cookie: "abc", header: "abd", want: http.StatusForbidden},
		{name: "post with match", method: http.MethodPost, path: "/w", cookie: "abc", header: "abc", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "csrf_token", Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("X-CSRF-Token", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), "invalid csrf token")
			}
		})
	}
}

func TestProvision_SetsCookieWhenAbsent(t *testing.T) {
	e := newEcho(Config{Secure: true, Domain: "example.org"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/csrf", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		CSRFToken string `json:"csrfToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	raw, err := base64.RawURLEncoding.DecodeString(body.CSRFToken)
	require.NoError(t, err)
	assert.Len(t, raw, tokenBytes)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "csrf_token", c.Name)
	assert.Equal(t, body.CSRFToken, c.Value)
	assert.Equal(t, "/", c.Path)
	assert.False(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestProvision_KeepsExistingCookie(t *testing.T) {
	e := newEcho(Config{})

	req := httptest.NewRequest(http.MethodGet, "/csrf", nil)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "existing"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	assert.JSONEq(t, `{"csrfToken":"existing"}`, rec.Body.String())
}

func TestProvisionedTokenPassesMiddleware(t *testing.T) {
	e := newEcho(Config{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/csrf", nil))
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodPost, "/w", nil)
	req.AddCookie(cookie)
	req.Header.Set("X-CSRF-Token", cookie.Value)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

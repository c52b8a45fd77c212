package auth

import (
	"net/http"
	"time"
)

const RefreshCookieName = "refresh_token"

type CookieConfig struct {
	Secure      bool
	SameSite    http.SameSite
	Domain      string
	RefreshPath string
}

func (cc CookieConfig) path() string {
	if cc.RefreshPath == "" {
		return "/api/auth"
	}
	return cc.RefreshPath
}

func (cc CookieConfig) sameSite() http.SameSite {
	if cc.SameSite == 0 {
		return http.SameSiteLaxMode
	}
	return cc.SameSite
}

func (cc CookieConfig) CreateCookie(value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     cc.path(),
		Domain:   cc.Domain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: cc.sameSite(),
	}
}

func (cc CookieConfig) DeleteCookie() *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     cc.path(),
		Domain:   cc.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: cc.sameSite(),
	}
}

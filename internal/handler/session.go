package handler

import (
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authgate/internal/config"
	"github.com/iliyamo/authgate/internal/utils"
)

// dbTimeout bounds the storage work a single handler does.
const dbTimeout = 5 * time.Second

// setSessionCookie places tok in the httpOnly carrier cookie.  Expiring
// tokens get a cookie that expires with them; non-expiring tokens get a
// browser-session cookie.
func setSessionCookie(c echo.Context, cfg config.CookieConfig, tok utils.Token) {
	ck := &http.Cookie{
		Name:     cfg.Name,
		Value:    tok.Value,
		Path:     cfg.Path,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if tok.ExpiresAt != nil {
		ck.Expires = *tok.ExpiresAt
		// Max-Age 0 would drop the attribute, so round up to at least a second.
		ck.MaxAge = max(1, int(math.Ceil(time.Until(*tok.ExpiresAt).Seconds())))
	}
	c.SetCookie(ck)
}

func clearSessionCookie(c echo.Context, cfg config.CookieConfig) {
	c.SetCookie(&http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     cfg.Path,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

func sessionToken(c echo.Context, cfg config.CookieConfig) string {
	if ck, err := c.Cookie(cfg.Name); err == nil {
		return ck.Value
	}
	return ""
}

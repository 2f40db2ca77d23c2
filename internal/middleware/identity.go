package middleware

// identity.go holds the context keys the gate writes and the helpers the
// handlers and the rate limiter read them with.

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authgate/internal/service"
)

const (
	ctxIdentity = "identity"
	ctxUserID   = "user_id"
)

func setIdentity(c echo.Context, id service.Identity) {
	c.Set(ctxIdentity, id)
	c.Set(ctxUserID, service.Subject(id.AccountID))
}

// IdentityFrom returns the identity attached by SessionAuth.
func IdentityFrom(c echo.Context) (service.Identity, bool) {
	id, ok := c.Get(ctxIdentity).(service.Identity)
	return id, ok
}

// RequireOwner rejects requests whose path parameter param does not name
// the authenticated account.  It must run after SessionAuth.
func RequireOwner(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return c.String(http.StatusForbidden, "Unauthorized")
			}
			want, err := strconv.ParseUint(c.Param(param), 10, 64)
			if err != nil || want != id.AccountID {
				return c.String(http.StatusForbidden, "Unauthorized")
			}
			return next(c)
		}
	}
}

// currentUserID returns the authenticated subject, or "anon".
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}

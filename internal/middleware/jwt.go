package middleware // middleware provides the session gate and request guards shared by the routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authgate/internal/service"
)

// SessionAuth returns an Echo middleware that reads the session token from
// the named cookie and asks the gate whether it belongs to a live account.
// Rejected requests are redirected to loginPath and never reach the handler.
// Storage failures are returned as errors so the error handler can answer
// with a 5xx instead of pretending the user is logged out.  On success the
// identity is available through IdentityFrom and c.Get("user_id").
func SessionAuth(gate *service.Gate, cookieName, loginPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var raw string
			if ck, err := c.Cookie(cookieName); err == nil {
				raw = ck.Value
			}

			d, err := gate.Authenticate(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			if !d.Authorized {
				return c.Redirect(http.StatusFound, loginPath)
			}
			setIdentity(c, d.Identity)
			return next(c)
		}
	}
}

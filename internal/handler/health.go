package handler // package handler contains the HTTP handlers of the service

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health answers load balancer probes.  It does not touch storage.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

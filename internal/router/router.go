package router // package router defines how HTTP routes are registered for the service

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authgate/internal/config"
	"github.com/iliyamo/authgate/internal/handler"
	"github.com/iliyamo/authgate/internal/metrics"
	"github.com/iliyamo/authgate/internal/middleware"
	"github.com/iliyamo/authgate/internal/service"
)

// RegisterRoutes registers routes that do not require authentication:
// the health check and, when metrics are enabled, the Prometheus endpoint.
func RegisterRoutes(e *echo.Echo, m *metrics.Metrics) {
	e.GET("/healthz", handler.Health)
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
}

// AuthDeps bundles what the credential and session routes need.
type AuthDeps struct {
	Cfg       config.Config
	RateLimit config.RateLimitConfig
	Redis     *redis.Client // nil disables rate limiting
	Log       logrus.FieldLogger
	Gate      *service.Gate
	Auth      *handler.AuthHandler
	Profile   *handler.ProfileHandler
	Posts     *handler.PostHandler
}

// RegisterAuth wires the entry points and the routes behind the session
// gate.  Every protected route redirects to the login path when the gate
// rejects the request.
func RegisterAuth(e *echo.Echo, d AuthDeps) {
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)

	e.GET(d.Cfg.LoginPath, d.Auth.LoginPage)
	e.POST(d.Cfg.LoginPath, d.Auth.Login, limit)
	e.GET("/register", d.Auth.RegisterPage)
	e.POST("/register", d.Auth.Register, limit)
	e.Match([]string{http.MethodGet, http.MethodPost}, "/logout", d.Auth.Logout)

	gate := middleware.SessionAuth(d.Gate, d.Cfg.Cookie.Name, d.Cfg.LoginPath)

	e.GET("/dashboard", d.Profile.Dashboard, gate)
	e.POST("/edit/:id", d.Profile.Edit, gate, middleware.RequireOwner("id"))
	e.DELETE("/account", d.Profile.DeleteAccount, gate)

	e.GET(d.Cfg.HomePath, d.Posts.Home, gate)
	e.POST("/post", d.Posts.Create, gate)
	e.GET("/like/:id", d.Posts.Like, gate)
	e.GET("/delete/:id", d.Posts.Delete, gate)
}

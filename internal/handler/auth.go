package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authgate/internal/config"
	"github.com/iliyamo/authgate/internal/service"
)

// AuthHandler serves the credential entry points: register, login and
// logout, plus the plain-text pages that front them.
type AuthHandler struct {
	Cfg  config.Config
	Life *service.Lifecycle
}

func NewAuthHandler(cfg config.Config, life *service.Lifecycle) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Life: life}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Name     string `json:"name" form:"name"`
	Age      int    `json:"age" form:"age"`
}

type loginReq struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// invalidCredentials is the one message for an unknown email and a wrong
// password alike.
const invalidCredentials = "invalid email or password"

func (h *AuthHandler) LoginPage(c echo.Context) error {
	return c.String(http.StatusOK, "login: POST email and password to /login")
}

func (h *AuthHandler) RegisterPage(c echo.Context) error {
	return c.String(http.StatusOK, "register: POST username, email, password (and optionally name, age) to /register")
}

// Register creates the account, sets the session cookie and sends the
// browser to the home page.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	s, err := h.Life.Register(ctx, service.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Age:      optionalAge(req.Age),
	}, c.RealIP())
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return c.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicateAccount):
		return c.String(http.StatusConflict, "account already exists")
	case err != nil:
		return err
	}

	setSessionCookie(c, h.Cfg.Cookie, s.Token)
	return c.Redirect(http.StatusSeeOther, h.Cfg.HomePath)
}

// Login checks credentials.  On failure no cookie is set and the caller
// cannot tell an unknown email from a wrong password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return c.String(http.StatusBadRequest, "email and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	s, err := h.Life.Login(ctx, req.Email, req.Password, c.RealIP())
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrWrongPassword):
		return c.String(http.StatusUnauthorized, invalidCredentials)
	case err != nil:
		return err
	}

	setSessionCookie(c, h.Cfg.Cookie, s.Token)
	return c.Redirect(http.StatusSeeOther, h.Cfg.HomePath)
}

// Logout clears the carrier cookie and, when revocation is configured,
// revokes the token it held.  It works with or without a valid session.
// The cookie is cleared even when revocation fails.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	raw := sessionToken(c, h.Cfg.Cookie)
	clearSessionCookie(c, h.Cfg.Cookie)
	if err := h.Life.Logout(ctx, raw, c.RealIP()); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, h.Cfg.LoginPath)
}

func optionalAge(age int) *int {
	if age <= 0 {
		return nil
	}
	return &age
}

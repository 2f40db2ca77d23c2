package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authgate/internal/config"
	"github.com/iliyamo/authgate/internal/middleware"
	"github.com/iliyamo/authgate/internal/model"
	"github.com/iliyamo/authgate/internal/repository"
	"github.com/iliyamo/authgate/internal/service"
)

// ProfileHandler serves the authenticated account's own pages.  All routes
// sit behind middleware.SessionAuth.
type ProfileHandler struct {
	Cfg      config.Config
	Accounts repository.AccountStore
	Life     *service.Lifecycle
}

func NewProfileHandler(cfg config.Config, accounts repository.AccountStore, life *service.Lifecycle) *ProfileHandler {
	return &ProfileHandler{Cfg: cfg, Accounts: accounts, Life: life}
}

type editReq struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Name     string `json:"name" form:"name"`
	Age      int    `json:"age" form:"age"`
}

// Dashboard returns the account resolved by the gate.
func (h *ProfileHandler) Dashboard(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.Redirect(http.StatusFound, h.Cfg.LoginPath)
	}
	return c.JSON(http.StatusOK, id.Account)
}

// Edit updates the caller's profile.  Ownership of :id is enforced by
// middleware.RequireOwner on the route.
func (h *ProfileHandler) Edit(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.Redirect(http.StatusFound, h.Cfg.LoginPath)
	}
	var req editReq
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	err := h.Accounts.UpdateProfile(ctx, id.AccountID, model.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
		Name:     req.Name,
		Age:      optionalAge(req.Age),
	})
	switch {
	case errors.Is(err, repository.ErrDuplicateAccount):
		return c.String(http.StatusConflict, "account already exists")
	case errors.Is(err, repository.ErrNotFound):
		return c.Redirect(http.StatusFound, h.Cfg.LoginPath)
	case err != nil:
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard")
}

// DeleteAccount removes the caller's account and clears the cookie.  Tokens
// still held elsewhere are rejected by the gate from now on because their
// subject no longer resolves.
func (h *ProfileHandler) DeleteAccount(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.Redirect(http.StatusFound, h.Cfg.LoginPath)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Life.DeleteAccount(ctx, id, c.RealIP()); err != nil && !errors.Is(err, service.ErrNotFound) {
		return err
	}
	clearSessionCookie(c, h.Cfg.Cookie)
	return c.NoContent(http.StatusNoContent)
}

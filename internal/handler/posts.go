package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authgate/internal/config"
	"github.com/iliyamo/authgate/internal/middleware"
	"github.com/iliyamo/authgate/internal/model"
	"github.com/iliyamo/authgate/internal/repository"
)

// feedLimit caps the number of posts on the home feed.
const feedLimit = 50

// PostHandler serves the home feed and post actions for authenticated
// accounts.
type PostHandler struct {
	Cfg   config.Config
	Posts repository.PostStore
}

func NewPostHandler(cfg config.Config, posts repository.PostStore) *PostHandler {
	return &PostHandler{Cfg: cfg, Posts: posts}
}

type postReq struct {
	Content string `json:"content" form:"content"`
}

// Home lists recent posts with like counts.
func (h *PostHandler) Home(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.Redirect(http.StatusFound, h.Cfg.LoginPath)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	posts, err := h.Posts.List(ctx, id.AccountID, feedLimit)
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []model.PostView{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"account": id.Account.Username,
		"posts":   posts,
	})
}

// Create stores a post owned by the caller.
func (h *PostHandler) Create(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.Redirect(http.StatusFound, h.Cfg.LoginPath)
	}
	var req postReq
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return c.String(http.StatusBadRequest, "content is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Posts.Create(ctx, id.AccountID, content); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, h.Cfg.HomePath)
}

// Like adds the caller's like to a post.  Liking twice is a no-op.
func (h *PostHandler) Like(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.Redirect(http.StatusFound, h.Cfg.LoginPath)
	}
	postID, err := parseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "post not found")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Posts.Like(ctx, postID, id.AccountID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		return err
	}
	return c.Redirect(http.StatusSeeOther, h.Cfg.HomePath)
}

// Delete removes a post when the caller owns it.  Requests for someone
// else's post are ignored and redirected like a success.
func (h *PostHandler) Delete(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.Redirect(http.StatusFound, h.Cfg.LoginPath)
	}
	postID, err := parseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "post not found")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	post, err := h.Posts.GetByID(ctx, postID)
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "post not found")
	}
	if err != nil {
		return err
	}
	if post.AccountID == id.AccountID {
		if err := h.Posts.Delete(ctx, postID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return c.Redirect(http.StatusSeeOther, h.Cfg.HomePath)
}

func parseID(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/codeconnects/backend/internal/errors"
	"github.com/codeconnects/backend/internal/feed"
	"github.com/codeconnects/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// openView serves a cached view, or reloads it when ?refresh=true
func (h *Handlers) openView(c *gin.Context, view feed.View) (*feed.Page, bool) {
	svc := h.service(c)
	ctx := c.Request.Context()

	var (
		page *feed.Page
		err  error
	)
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		page, err = svc.Refetch(ctx, view)
	} else {
		page, err = svc.Open(ctx, view)
	}
	if err != nil {
		util.RespondWithError(c, err)
		return nil, false
	}
	return page, true
}

// GetGlobalFeed returns every post, newest first
// GET /api/v1/feed/global
func (h *Handlers) GetGlobalFeed(c *gin.Context) {
	if page, ok := h.openView(c, feed.Global()); ok {
		c.JSON(http.StatusOK, page)
	}
}

// GetFollowingFeed returns posts by the viewer and the people they follow
// GET /api/v1/feed/following
func (h *Handlers) GetFollowingFeed(c *gin.Context) {
	id, ok := util.RequireIdentity(c)
	if !ok {
		return
	}
	if page, ok := h.openView(c, feed.Following(id.ID)); ok {
		c.JSON(http.StatusOK, page)
	}
}

// GetUserPosts returns one author's posts
// GET /api/v1/users/:id/posts
func (h *Handlers) GetUserPosts(c *gin.Context) {
	if page, ok := h.openView(c, feed.UserFeed(c.Param("id"))); ok {
		c.JSON(http.StatusOK, page)
	}
}

// GetPost returns a single post
// GET /api/v1/posts/:id
func (h *Handlers) GetPost(c *gin.Context) {
	page, ok := h.openView(c, feed.SinglePost(c.Param("id")))
	if !ok {
		return
	}
	if len(page.Posts) == 0 {
		util.RespondWithError(c, errors.NotFound(errors.OpFetch, "post", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"post":       page.Posts[0],
		"from_cache": page.FromCache,
		"stale":      page.Stale,
	})
}

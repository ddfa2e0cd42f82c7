package handlers

import (
	"net/http"

	"github.com/codeconnects/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// SearchPosts matches post descriptions and tags
// GET /api/v1/search/posts?q=
func (h *Handlers) SearchPosts(c *gin.Context) {
	query := c.Query("q")
	posts, err := h.service(c).SearchPosts(c.Request.Context(), query)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "posts": posts, "count": len(posts)})
}

// SearchUsers matches usernames and bios
// GET /api/v1/search/users?q=
func (h *Handlers) SearchUsers(c *gin.Context) {
	query := c.Query("q")
	users, err := h.service(c).SearchUsers(c.Request.Context(), query)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "users": users, "count": len(users)})
}

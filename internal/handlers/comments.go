package handlers

import (
	"net/http"

	"github.com/codeconnects/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// GetComments returns a post's comments, oldest first
// GET /api/v1/posts/:id/comments
func (h *Handlers) GetComments(c *gin.Context) {
	postID := c.Param("id")
	comments, err := h.service(c).Comments(c.Request.Context(), postID)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"post_id":  postID,
		"comments": comments,
		"count":    len(comments),
	})
}

// CreateComment adds a comment by the viewer
// POST /api/v1/posts/:id/comments
func (h *Handlers) CreateComment(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	comment, err := h.service(c).AddComment(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

package handlers

import (
	"net/http"

	"github.com/codeconnects/backend/internal/feed"
	"github.com/codeconnects/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// CreatePostRequest is the body of POST /api/v1/posts
type CreatePostRequest struct {
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Code        *string  `json:"code,omitempty"`
	Media       *string  `json:"media,omitempty"`
	Tags        []string `json:"tags"`
}

// CreatePost creates a post for the viewer
// POST /api/v1/posts
func (h *Handlers) CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	postID, err := h.service(c).CreatePost(c.Request.Context(), feed.NewPost{
		Description: req.Description,
		Content:     req.Content,
		Code:        req.Code,
		Media:       req.Media,
		Tags:        req.Tags,
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": postID})
}

// DeletePost deletes one of the viewer's posts
// DELETE /api/v1/posts/:id
func (h *Handlers) DeletePost(c *gin.Context) {
	postID := c.Param("id")
	if err := h.service(c).DeletePost(c.Request.Context(), postID); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "post_id": postID})
}

// ToggleLikeRequest carries the like state the client is looking at
type ToggleLikeRequest struct {
	Liked bool `json:"liked"`
}

// ToggleLike flips the viewer's like from the state given in the body
// POST /api/v1/posts/:id/like
func (h *Handlers) ToggleLike(c *gin.Context) {
	var req ToggleLikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	postID := c.Param("id")
	liked, err := h.service(c).ToggleLike(c.Request.Context(), postID, req.Liked)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post_id": postID, "liked": liked})
}

package handlers

import (
	"net/http"

	"github.com/codeconnects/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// SetFollowing follows or unfollows a user; the body is the desired state
// POST /api/v1/users/:id/follow
func (h *Handlers) SetFollowing(c *gin.Context) {
	var req struct {
		Following *bool `json:"following" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	userID := c.Param("id")
	if err := h.service(c).SetFollowing(c.Request.Context(), userID, *req.Following); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "following": *req.Following})
}

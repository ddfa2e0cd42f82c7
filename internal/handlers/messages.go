package handlers

import (
	"net/http"

	"github.com/codeconnects/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// GetConversations lists the viewer's conversations, most recent first
// GET /api/v1/messages
func (h *Handlers) GetConversations(c *gin.Context) {
	id, ok := util.RequireIdentity(c)
	if !ok {
		return
	}
	list, err := h.messages.Conversations(c.Request.Context(), id)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list, "count": len(list)})
}

// GetConversation returns the messages exchanged with one user, oldest first
// GET /api/v1/messages/:userId
func (h *Handlers) GetConversation(c *gin.Context) {
	id, ok := util.RequireIdentity(c)
	if !ok {
		return
	}
	peerID := c.Param("userId")
	msgs, err := h.messages.Conversation(c.Request.Context(), id, peerID)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": peerID, "messages": msgs, "count": len(msgs)})
}

// SendMessage sends a direct message to a user
// POST /api/v1/messages/:userId
func (h *Handlers) SendMessage(c *gin.Context) {
	id, ok := util.RequireIdentity(c)
	if !ok {
		return
	}
	var req struct {
		Content string  `json:"content"`
		Media   *string `json:"media"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), id, c.Param("userId"), req.Content, req.Media)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkConversationRead marks the messages a user sent the viewer as read
// POST /api/v1/messages/:userId/read
func (h *Handlers) MarkConversationRead(c *gin.Context) {
	id, ok := util.RequireIdentity(c)
	if !ok {
		return
	}
	n, err := h.messages.MarkRead(c.Request.Context(), id, c.Param("userId"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

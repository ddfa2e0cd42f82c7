package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/codeconnects/backend/internal/auth"
	"github.com/codeconnects/backend/internal/errors"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// Register creates a profile and returns a token for it
// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, errors.ValidationError(errors.OpRegister, "username", err.Error()))
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		util.RespondWithError(c, authError(errors.OpRegister, err))
		return
	}

	logger.Log.Info("Profile registered", logger.WithUserID(resp.User.ID))
	c.JSON(http.StatusCreated, resp)
}

// IssueToken signs a token for an existing profile. Only available when dev tokens are enabled.
// POST /api/v1/auth/token
func (h *Handlers) IssueToken(c *gin.Context) {
	if !h.devTokens {
		util.RespondWithError(c, errors.NotFound(errors.OpIssueToken, "route", c.FullPath()))
		return
	}

	var req auth.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.IssueToken(c.Request.Context(), req.UserID)
	if err != nil {
		util.RespondWithError(c, authError(errors.OpIssueToken, err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated viewer
// GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	id, ok := util.RequireIdentity(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": id})
}

// Logout drops the viewer's feed session and cached views. The token stays
// valid; the next request starts with an empty cache.
// DELETE /api/v1/auth/session
func (h *Handlers) Logout(c *gin.Context) {
	id, ok := util.RequireIdentity(c)
	if !ok {
		return
	}
	h.registry.Drop(id.ID)
	logger.Log.Info("Feed session dropped", logger.WithUserID(id.ID))
	c.Status(http.StatusNoContent)
}

func authError(op errors.Op, err error) error {
	switch {
	case stderrors.Is(err, auth.ErrUsernameExists):
		return &errors.FeedError{Code: errors.ErrConstraintViolation, Op: op, Field: "username", Message: err.Error(), Err: err}
	case stderrors.Is(err, auth.ErrInvalidInput):
		return errors.ValidationError(op, "username", err.Error())
	case stderrors.Is(err, auth.ErrUserNotFound):
		return errors.NotFound(op, "user", "")
	default:
		return errors.InternalError("authentication failed")
	}
}

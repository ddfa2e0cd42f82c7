package util

import (
	"net/http"

	"github.com/codeconnects/backend/internal/errors"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message,omitempty"`
	Op       string `json:"op,omitempty"`
	TargetID string `json:"target_id,omitempty"`
	Field    string `json:"field,omitempty"`
}

// RespondWithError sends err as a structured error response. Errors that are
// not a *errors.FeedError become INTERNAL_ERROR without leaking their text.
func RespondWithError(c *gin.Context, err error) {
	feedErr, ok := errors.As(err)
	if !ok {
		feedErr = errors.InternalError("internal server error")
		feedErr.Err = err
	}
	status := feedErr.Status()

	fields := []zap.Field{
		zap.String("code", string(feedErr.Code)),
		zap.String("op", string(feedErr.Op)),
		zap.String("target_id", feedErr.TargetID),
		zap.Int("status", status),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Log.Error("API error", fields...)
	} else if status >= http.StatusBadRequest {
		logger.Log.Warn("API error", fields...)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:     string(feedErr.Code),
		Message:  feedErr.Message,
		Op:       string(feedErr.Op),
		TargetID: feedErr.TargetID,
		Field:    feedErr.Field,
	})
}

// RespondUnauthorized sends a 401 Unauthorized response
func RespondUnauthorized(c *gin.Context, message ...string) {
	err := errors.NotAuthenticated("")
	if len(message) > 0 && message[0] != "" {
		err.Message = message[0]
	}
	RespondWithError(c, err)
}

// RespondBadRequest sends a 400 Bad Request response, typically for a body that failed binding
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, errors.BadRequest(message))
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/codeconnects/backend/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Health reports whether the store is reachable
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	status := gin.H{
		"status":   "ok",
		"time":     time.Now().UTC(),
		"sessions": h.registry.Len(),
	}
	if h.healthCheck != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.healthCheck(ctx); err != nil {
			logger.Log.Warn("Health check failed", zap.Error(err))
			status["status"] = "degraded"
			status["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	c.JSON(http.StatusOK, status)
}

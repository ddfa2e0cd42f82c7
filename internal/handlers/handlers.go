// Package handlers exposes the feed layer over HTTP. Every request resolves the
// viewer's feed.Service from the registry so each session keeps its own cache.
package handlers

import (
	"context"

	"github.com/codeconnects/backend/internal/auth"
	"github.com/codeconnects/backend/internal/feed"
	"github.com/codeconnects/backend/internal/messaging"
	"github.com/codeconnects/backend/internal/util"
	"github.com/codeconnects/backend/internal/websocket"
	"github.com/gin-gonic/gin"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	registry    *feed.Registry
	auth        auth.AuthServiceInterface
	wsHandler   *websocket.Handler
	messages    *messaging.Service
	healthCheck func(ctx context.Context) error
	devTokens   bool
}

// NewHandlers creates a new handlers instance
func NewHandlers(registry *feed.Registry, authService auth.AuthServiceInterface) *Handlers {
	return &Handlers{
		registry: registry,
		auth:     authService,
	}
}

// SetWebSocketHandler sets the WebSocket handler for real-time notifications
func (h *Handlers) SetWebSocketHandler(ws *websocket.Handler) {
	h.wsHandler = ws
}

// SetMessaging enables the /api/v1/messages routes
func (h *Handlers) SetMessaging(svc *messaging.Service) {
	h.messages = svc
}

// SetHealthCheck sets the check /health reports on, typically a database ping
func (h *Handlers) SetHealthCheck(check func(ctx context.Context) error) {
	h.healthCheck = check
}

// EnableDevTokens turns on POST /auth/token, which signs a token for any existing profile
func (h *Handlers) EnableDevTokens(enabled bool) {
	h.devTokens = enabled
}

// service returns the feed service for whoever is making the request
func (h *Handlers) service(c *gin.Context) *feed.Service {
	id, _ := util.GetIdentity(c)
	return h.registry.For(id)
}

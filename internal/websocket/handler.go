package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/codeconnects/backend/internal/auth"
	"github.com/codeconnects/backend/internal/errors"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/session"
	"github.com/codeconnects/backend/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler upgrades /ws/notifications requests and attaches them to the hub
type Handler struct {
	hub            *Hub
	auth           auth.AuthServiceInterface
	originPatterns []string
}

// NewHandler creates a handler. Origins follow websocket.AcceptOptions.OriginPatterns;
// with none only same-origin browsers may connect.
func NewHandler(hub *Hub, authService auth.AuthServiceInterface, originPatterns ...string) *Handler {
	return &Handler{hub: hub, auth: authService, originPatterns: originPatterns}
}

// HandleWebSocket authenticates the request, upgrades it and streams the
// viewer's notifications until the client goes away. Browsers cannot set
// headers on a websocket, so ?token= is accepted alongside a bearer header.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	viewer, ok := h.authenticate(c)
	if !ok {
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		// Accept has already written the error response
		logger.Log.Warn("WebSocket upgrade failed", zap.Error(err), logger.WithIP(c.ClientIP()))
		return
	}

	client := NewClient(h.hub, conn, viewer.ID, viewer.Username)
	client.RemoteAddr = c.ClientIP()
	h.hub.Register(client)

	_ = client.Send(NewMessage(MessageTypeSystem, SystemPayload{
		Event:   EventConnected,
		Message: "Welcome to CodeConnects!",
		Data: map[string]interface{}{
			"user_id":     viewer.ID,
			"username":    viewer.Username,
			"server_time": time.Now().UTC().UnixMilli(),
		},
	}))

	client.Serve()
}

// authenticate writes a 401 and returns false when the request carries no valid token
func (h *Handler) authenticate(c *gin.Context) (*session.Identity, bool) {
	token := c.Query("token")
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		util.RespondWithError(c, errors.NotAuthenticated(errors.OpSubscribe))
		return nil, false
	}

	viewer, err := h.auth.ValidateToken(c.Request.Context(), token)
	if err != nil {
		logger.Log.Debug("WebSocket auth failed", zap.Error(err), logger.WithIP(c.ClientIP()))
		util.RespondUnauthorized(c, "invalid or expired token")
		return nil, false
	}
	return viewer, true
}

// HandleStats reports hub counters for monitoring
func (h *Handler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"websocket": h.hub.GetStats(),
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) Shutdown(ctx context.Context) error {
	return h.hub.Shutdown(ctx)
}

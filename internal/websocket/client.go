package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/codeconnects/backend/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait = 10 * time.Second
	// idleTimeout closes connections that send nothing, not even a pong, for this long
	idleTimeout  = 60 * time.Second
	pingInterval = idleTimeout * 9 / 10
	// clients only send pings, so inbound frames stay small
	maxFrameSize = 4 * 1024
)

var errClientClosed = errors.New("client connection closed")

// Client is one websocket connection of a viewer. The hub writes to it through
// send; Serve owns the socket.
type Client struct {
	conn *websocket.Conn
	hub  *Hub

	UserID      string
	Username    string
	RemoteAddr  string
	ConnectedAt time.Time

	send    chan []byte
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards closed and sendClosed. enqueue holds the read lock so the hub
	// cannot close send underneath it.
	mu         sync.RWMutex
	closed     bool
	sendClosed bool
}

// NewClient wraps conn for userID using the hub's per-connection limits
func NewClient(hub *Hub, conn *websocket.Conn, userID, username string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:         hub,
		conn:        conn,
		UserID:      userID,
		Username:    username,
		ConnectedAt: time.Now(),
		send:        make(chan []byte, hub.opts.SendBuffer),
		limiter:     rate.NewLimiter(hub.opts.MessagesPerSecond, hub.opts.Burst),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Serve runs the connection until either side closes it
func (c *Client) Serve() {
	go c.writeLoop()
	c.readLoop()
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()
	c.conn.SetReadLimit(maxFrameSize)

	for {
		ctx, cancel := context.WithTimeout(c.ctx, idleTimeout)
		_, data, err := c.conn.Read(ctx)
		cancel()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.Allow() {
			c.hub.stats.Errors.Add(1)
			c.SendError("rate_limited", "Too many messages, please slow down")
			continue
		}
		c.hub.stats.MessagesReceived.Add(1)

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.SendError("invalid_json", "Failed to parse message")
			continue
		}
		c.handle(&msg)
	}
}

func (c *Client) logReadError(err error) {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		logger.Log.Debug("Client disconnected normally", logger.WithUserID(c.UserID))
		return
	}
	if c.ctx.Err() != nil {
		return
	}
	c.hub.stats.Errors.Add(1)
	logger.Log.Warn("Read error for client", logger.WithUserID(c.UserID), zap.Error(err))
}

// writeLoop drains send and keeps the connection alive with pings. It returns
// when the hub closes send or the client is closed.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(frame); err != nil {
				c.hub.stats.Errors.Add(1)
				logger.Log.Warn("Write error for client", logger.WithUserID(c.UserID), zap.Error(err))
				return
			}
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				logger.Log.Debug("Ping failed for client", logger.WithUserID(c.UserID), zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) write(frame []byte) error {
	ctx, cancel := context.WithTimeout(c.ctx, writeWait)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, frame)
}

// handle answers an inbound message. Ping is the only type clients send.
func (c *Client) handle(msg *Message) {
	if msg.Type != MessageTypePing {
		c.SendError("unknown_type", fmt.Sprintf("Unknown message type: %s", msg.Type))
		return
	}

	var ping PingPayload
	_ = msg.ParsePayload(&ping)
	now := time.Now().UnixMilli()
	_ = c.Send(NewReply(msg, MessageTypePong, PongPayload{
		ClientTime: ping.ClientTime,
		ServerTime: now,
		Latency:    now - ping.ClientTime,
	}))
}

// Send queues message for this connection only
func (c *Client) Send(message *Message) error {
	frame, err := json.Marshal(message)
	if err != nil {
		return err
	}
	if !c.enqueue(frame) {
		return fmt.Errorf("send to %s: %w", c.UserID, errClientClosed)
	}
	return nil
}

func (c *Client) SendError(code, message string) {
	_ = c.Send(NewErrorMessage(code, message))
}

// enqueue never blocks. It reports false when the buffer is full or the
// connection is closing.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.sendClosed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound channel once; only the hub calls it
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// Close cancels both loops and closes the socket. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "closing")
	}
}

func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Package websocket pushes feed notifications to the connections of the
// viewer they belong to, over github.com/coder/websocket.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/metrics"
	"github.com/codeconnects/backend/internal/notify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options tune per-connection limits
type Options struct {
	// MessagesPerSecond and Burst bound inbound frames per connection
	MessagesPerSecond rate.Limit
	Burst             int
	// SendBuffer is how many outbound frames may queue before the client is dropped
	SendBuffer int
}

func DefaultOptions() Options {
	return Options{MessagesPerSecond: 10, Burst: 20, SendBuffer: 64}
}

type eventKind int

const (
	eventRegister eventKind = iota
	eventUnregister
	eventDeliver
)

// event is one request to the Run loop. Deliver events carry an already
// encoded frame so a notification is marshalled once for all connections.
type event struct {
	kind   eventKind
	client *Client
	userID string
	frame  []byte
}

// Hub tracks live connections per user. All changes to the connection set go
// through Run; readers take mu. Hub is a notify.Sink.
type Hub struct {
	opts   Options
	events chan event

	mu    sync.RWMutex
	conns map[string]map[*Client]struct{}

	stats Stats

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

var _ notify.Sink = (*Hub)(nil)

// Stats are cumulative counters since the hub was created
type Stats struct {
	TotalConnections   atomic.Int64
	ActiveConnections  atomic.Int64
	MessagesReceived   atomic.Int64
	MessagesSent       atomic.Int64
	Errors             atomic.Int64
	ConnectionsDropped atomic.Int64
}

// NewHub creates a hub. Call Run to start routing.
func NewHub(opts ...func(*Options)) *Hub {
	o := DefaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		opts:    o,
		events:  make(chan event, 256),
		conns:   make(map[string]map[*Client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
}

// Run processes events until Shutdown
func (h *Hub) Run() {
	logger.Log.Info("WebSocket hub starting")
	defer close(h.stopped)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case ev := <-h.events:
			switch ev.kind {
			case eventRegister:
				h.add(ev.client)
			case eventUnregister:
				h.remove(ev.client)
			case eventDeliver:
				h.deliver(ev.userID, ev.frame)
			}
		}
	}
}

// post hands ev to Run, giving up once the hub is shutting down
func (h *Hub) post(ev event) {
	select {
	case h.events <- ev:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Register(client *Client)   { h.post(event{kind: eventRegister, client: client}) }
func (h *Hub) Unregister(client *Client) { h.post(event{kind: eventUnregister, client: client}) }

// SendToUser queues message for every connection of userID
func (h *Hub) SendToUser(userID string, message *Message) {
	frame, err := json.Marshal(message)
	if err != nil {
		logger.Log.Error("Failed to encode websocket message", zap.String("type", message.Type), zap.Error(err))
		return
	}
	h.post(event{kind: eventDeliver, userID: userID, frame: frame})
}

// Notify delivers a feed notification to the connections of n.UserID.
// Notifications without a user have nowhere to go and are dropped.
func (h *Hub) Notify(_ context.Context, n notify.Notification) {
	if n.UserID == "" {
		return
	}
	h.SendToUser(n.UserID, NewNotificationMessage(n))
	metrics.RecordNotification("websocket", string(n.Level))
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	set := h.conns[c.UserID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.conns[c.UserID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	h.stats.TotalConnections.Add(1)
	active := h.stats.ActiveConnections.Add(1)
	metrics.RecordWebSocketConnections(int(active))
	logger.Log.Info("WebSocket client connected", logger.WithUserID(c.UserID), zap.Int64("active", active))
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	set := h.conns[c.UserID]
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.UserID)
	}
	h.mu.Unlock()

	c.closeSend()
	active := h.stats.ActiveConnections.Add(-1)
	metrics.RecordWebSocketConnections(int(active))
	logger.Log.Info("WebSocket client disconnected", logger.WithUserID(c.UserID), zap.Int64("active", active))
}

// deliver fans frame out to userID. A connection whose buffer is full is
// dropped rather than allowed to stall the loop.
func (h *Hub) deliver(userID string, frame []byte) {
	var slow []*Client

	h.mu.RLock()
	for c := range h.conns[userID] {
		if c.enqueue(frame) {
			h.stats.MessagesSent.Add(1)
		} else {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.stats.ConnectionsDropped.Add(1)
		metrics.RecordWebSocketDrop("slow_consumer")
		logger.Log.Warn("Dropping slow websocket client", logger.WithUserID(c.UserID))
		h.remove(c)
	}
}

// closeAll tells every connection the server is going away and closes it
func (h *Hub) closeAll() {
	frame, _ := json.Marshal(NewMessage(MessageTypeSystem, SystemPayload{Event: EventServerShutdown}))

	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	closed := 0
	for _, set := range conns {
		for c := range set {
			c.enqueue(frame)
			c.closeSend()
			closed++
		}
	}
	h.stats.ActiveConnections.Store(0)
	metrics.RecordWebSocketConnections(0)
	logger.Log.Info("Closed WebSocket connections during shutdown", zap.Int("count", closed))
}

// Shutdown stops Run and closes every connection, waiting until Run returns
// or ctx expires. Calling it again is harmless.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()
	select {
	case <-h.stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

func (h *Hub) IsUserOnline(userID string) bool {
	return h.GetUserConnectionCount(userID) > 0
}

func (h *Hub) GetUserConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	TotalConnections   int64 `json:"total_connections"`
	ActiveConnections  int64 `json:"active_connections"`
	MessagesReceived   int64 `json:"messages_received"`
	MessagesSent       int64 `json:"messages_sent"`
	Errors             int64 `json:"errors"`
	ConnectionsDropped int64 `json:"connections_dropped"`
}

func (h *Hub) GetStats() StatsSnapshot {
	return StatsSnapshot{
		TotalConnections:   h.stats.TotalConnections.Load(),
		ActiveConnections:  h.stats.ActiveConnections.Load(),
		MessagesReceived:   h.stats.MessagesReceived.Load(),
		MessagesSent:       h.stats.MessagesSent.Load(),
		Errors:             h.stats.Errors.Load(),
		ConnectionsDropped: h.stats.ConnectionsDropped.Load(),
	}
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("connections=%d/%d messages=rx:%d/tx:%d errors=%d dropped=%d",
		s.ActiveConnections, s.TotalConnections, s.MessagesReceived, s.MessagesSent, s.Errors, s.ConnectionsDropped)
}

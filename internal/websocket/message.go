package websocket

import (
	"encoding/json"
	"time"

	"github.com/codeconnects/backend/internal/notify"
)

const (
	MessageTypeSystem       = "system"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
	MessageTypeError        = "error"
	MessageTypeNotification = "notification"
)

// System events sent by the server
const (
	EventConnected      = "connected"
	EventServerShutdown = "server_shutdown"
)

// Message is the envelope of every frame in either direction. Payload stays
// raw until the receiver knows which type to decode it into.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	ID        string          `json:"id,omitempty"`
	ReplyTo   string          `json:"reply_to,omitempty"` // ID of the message being answered
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage encodes payload into a message stamped with the current time.
// Payloads are plain structs, so encoding does not fail in practice; a nil
// payload is omitted.
func NewMessage(msgType string, payload interface{}) *Message {
	msg := &Message{Type: msgType, Timestamp: time.Now().UTC()}
	if payload != nil {
		msg.Payload, _ = json.Marshal(payload)
	}
	return msg
}

// NewReply answers original, echoing its ID in ReplyTo
func NewReply(original *Message, msgType string, payload interface{}) *Message {
	msg := NewMessage(msgType, payload)
	msg.ReplyTo = original.ID
	return msg
}

func NewErrorMessage(code string, message string) *Message {
	return NewMessage(MessageTypeError, ErrorPayload{Code: code, Message: message})
}

// NewNotificationMessage wraps a feed notification. The notification time,
// when set, becomes the message timestamp.
func NewNotificationMessage(n notify.Notification) *Message {
	msg := NewMessage(MessageTypeNotification, NotificationPayload{
		Level:    string(n.Level),
		Text:     n.Text,
		Op:       n.Op,
		TargetID: n.TargetID,
	})
	if !n.At.IsZero() {
		msg.Timestamp = n.At.UTC()
	}
	return msg
}

// ParsePayload decodes the payload into target. An empty payload leaves target untouched.
func (m *Message) ParsePayload(target interface{}) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, target)
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PingPayload struct {
	ClientTime int64 `json:"client_time"`
}

type PongPayload struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
	Latency    int64 `json:"latency_ms"`
}

// NotificationPayload is the toast shown for one feed operation
type NotificationPayload struct {
	Level    string `json:"level"` // success, info or error
	Text     string `json:"text"`
	Op       string `json:"op,omitempty"`
	TargetID string `json:"target_id,omitempty"`
}

type SystemPayload struct {
	Event   string                 `json:"event"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

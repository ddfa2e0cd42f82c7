// Package notify delivers one-line user-facing messages about feed operations.
// Delivery is fire-and-forget: sinks log their own failures and never report them
// back to the caller.
package notify

import (
	"context"
	"sync"
	"time"
)

// Level classifies a notification for display
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Notification is a single toast-style message for one user
type Notification struct {
	Level    Level     `json:"level"`
	Text     string    `json:"text"`
	UserID   string    `json:"user_id,omitempty"`
	Op       string    `json:"op,omitempty"`
	TargetID string    `json:"target_id,omitempty"`
	At       time.Time `json:"at"`
}

// Sink receives notifications
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, n Notification)

func (f SinkFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// Discard drops every notification
var Discard Sink = SinkFunc(func(context.Context, Notification) {})

type multi []Sink

// Multi fans a notification out to every non-nil sink in order
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) Notify(ctx context.Context, n Notification) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	for _, s := range m {
		s.Notify(ctx, n)
	}
}

// Recorder keeps every notification in memory
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// Texts returns just the message texts, in order
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, n := range r.sent {
		out[i] = n.Text
	}
	return out
}

// Reset clears recorded notifications
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

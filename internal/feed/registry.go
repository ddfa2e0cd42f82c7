package feed

import (
	"context"
	"sync"
	"time"

	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/metrics"
	"github.com/codeconnects/backend/internal/notify"
	"github.com/codeconnects/backend/internal/session"
	"github.com/codeconnects/backend/internal/store"
	"go.uber.org/zap"
)

// Registry keeps one Service per viewer so each session has its own cache.
// Anonymous requests share a single read-only service.
type Registry struct {
	mu         sync.Mutex
	repo       store.Repository
	sink       notify.Sink
	opts       []Option
	services   map[string]*Service
	identities map[string]session.Identity
	lastSeen   map[string]time.Time
	now        func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry(repo store.Repository, sink notify.Sink, opts ...Option) *Registry {
	return &Registry{
		repo:       repo,
		sink:       sink,
		opts:       opts,
		services:   make(map[string]*Service),
		identities: make(map[string]session.Identity),
		lastSeen:   make(map[string]time.Time),
		now:        time.Now,
	}
}

// For returns the viewer's service, creating it on first use. The latest
// identity seen for a viewer (username, avatar) is what the service reports.
func (r *Registry) For(id session.Identity) *Service {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id.ID != "" {
		r.identities[id.ID] = id
		r.lastSeen[id.ID] = r.now()
	}
	if svc, ok := r.services[id.ID]; ok {
		return svc
	}

	var provider session.Provider = session.Anonymous()
	if id.ID != "" {
		userID := id.ID
		provider = session.ProviderFunc(func() (session.Identity, bool) {
			r.mu.Lock()
			defer r.mu.Unlock()
			current, ok := r.identities[userID]
			return current, ok
		})
	}

	svc := NewService(r.repo, provider, r.sink, r.opts...)
	r.services[id.ID] = svc
	metrics.Get().ActiveSessions.Set(float64(len(r.services)))
	return svc
}

// Drop forgets a viewer's service and cache. The next request from the
// viewer starts a fresh session.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop(userID)
	metrics.Get().ActiveSessions.Set(float64(len(r.services)))
}

// Sweep drops every viewer session not used within idle and returns how many
// were dropped. The shared anonymous service is kept.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	dropped := 0
	for userID, seen := range r.lastSeen {
		if seen.Before(cutoff) {
			r.drop(userID)
			dropped++
		}
	}
	metrics.Get().ActiveSessions.Set(float64(len(r.services)))
	return dropped
}

// RunSweeper calls Sweep every idle/2 until ctx is done
func (r *Registry) RunSweeper(ctx context.Context, idle time.Duration) {
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 {
				logger.Log.Debug("Dropped idle feed sessions", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) drop(userID string) {
	delete(r.services, userID)
	delete(r.identities, userID)
	delete(r.lastSeen, userID)
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.services)
}

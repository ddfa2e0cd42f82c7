// Package kernel holds the process-wide dependencies of the feed service and
// tears them down in reverse order on shutdown.
package kernel

import (
	"context"
	"sync"

	"github.com/codeconnects/backend/internal/auth"
	"github.com/codeconnects/backend/internal/feed"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/messaging"
	"github.com/codeconnects/backend/internal/notify"
	"github.com/codeconnects/backend/internal/store"
	"github.com/codeconnects/backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Kernel is filled in by OpenStore and Bootstrap and read by the binaries.
// Fields that a configuration does not use stay nil.
type Kernel struct {
	mu sync.RWMutex

	db    *gorm.DB
	redis redis.UniversalClient

	repo     store.Repository
	registry *feed.Registry
	messages *messaging.Service
	sink     notify.Sink
	auth     auth.AuthServiceInterface
	hub      *websocket.Hub

	closers []func(context.Context) error
}

// New returns an empty kernel
func New() *Kernel {
	return &Kernel{}
}

// set runs fn under the write lock
func (k *Kernel) set(fn func()) {
	k.mu.Lock()
	fn()
	k.mu.Unlock()
}

// DB is the GORM connection, nil for the memory store
func (k *Kernel) DB() *gorm.DB {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.db
}

// Redis is nil when redis is not configured or unreachable
func (k *Kernel) Redis() redis.UniversalClient {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.redis
}

func (k *Kernel) Repository() store.Repository {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.repo
}

func (k *Kernel) Registry() *feed.Registry {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.registry
}

func (k *Kernel) Messages() *messaging.Service {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.messages
}

// Sink falls back to the log sink when nothing was wired
func (k *Kernel) Sink() notify.Sink {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.sink == nil {
		return notify.Log()
	}
	return k.sink
}

func (k *Kernel) Auth() auth.AuthServiceInterface {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.auth
}

func (k *Kernel) Hub() *websocket.Hub {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.hub
}

// OnCleanup registers fn to run on Cleanup. The last registered runs first.
func (k *Kernel) OnCleanup(fn func(context.Context) error) *Kernel {
	k.set(func() { k.closers = append(k.closers, fn) })
	return k
}

// Cleanup runs the registered functions once, newest first. Failures are
// logged and do not stop the rest; the first one is returned.
func (k *Kernel) Cleanup(ctx context.Context) error {
	k.mu.Lock()
	closers := k.closers
	k.closers = nil
	k.mu.Unlock()

	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			logger.Log.Error("Cleanup function failed", zap.Int("index", i), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Validate reports every required dependency that is still missing
func (k *Kernel) Validate() error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var missing []string
	if k.repo == nil {
		missing = append(missing, "repository")
	}
	if k.registry == nil {
		missing = append(missing, "feed registry")
	}
	if k.auth == nil {
		missing = append(missing, "auth service")
	}
	if len(missing) > 0 {
		return &MissingDependencyError{Names: missing}
	}

	if k.redis == nil {
		logger.Log.Info("Redis not configured, notifications stay on this instance")
	}
	return nil
}

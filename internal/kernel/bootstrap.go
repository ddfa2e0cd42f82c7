package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeconnects/backend/internal/auth"
	"github.com/codeconnects/backend/internal/config"
	"github.com/codeconnects/backend/internal/database"
	"github.com/codeconnects/backend/internal/feed"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/messaging"
	"github.com/codeconnects/backend/internal/notify"
	"github.com/codeconnects/backend/internal/store/gormstore"
	"github.com/codeconnects/backend/internal/store/memory"
	"github.com/codeconnects/backend/internal/websocket"
	"go.uber.org/zap"
)

// OpenStore returns a kernel holding the repository for the configured driver
// and, for the SQL drivers, the migrated GORM connection behind it.
func OpenStore(cfg *config.Config) (*Kernel, error) {
	k := New()
	if cfg.StoreDriver == config.DriverMemory {
		logger.Log.Info("Using in-memory store")
		k.set(func() { k.repo = memory.New() })
		return k, nil
	}

	db, err := database.Open(database.OptionsFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	k.set(func() {
		k.db = db
		k.repo = gormstore.New(db)
	})
	k.OnCleanup(func(context.Context) error { return database.Close(db) })
	return k, nil
}

// Bootstrap builds every dependency the API needs from cfg. With redis
// configured, notifications are published to redis and every instance
// forwards the ones it receives to its own websocket clients; without it the
// hub is fed directly. Idle viewer sessions are swept when
// cfg.SessionIdleTimeout is set. Cleanup undoes everything Bootstrap started.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Kernel, error) {
	k, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	repo := k.Repository()

	hub := websocket.NewHub()
	go hub.Run()
	k.set(func() { k.hub = hub })
	k.OnCleanup(hub.Shutdown)

	sink := notify.Multi(notify.Log(), hub)
	if cfg.RedisEnabled() {
		client, err := notify.NewRedisClient(ctx, cfg.RedisAddr(), cfg.RedisPassword)
		if err != nil {
			logger.Log.Warn("Redis unavailable, notifications stay on this instance", zap.Error(err))
		} else {
			k.set(func() { k.redis = client })
			k.OnCleanup(func(context.Context) error { return client.Close() })

			redisSink := notify.NewRedisSink(client)
			subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			go func() {
				if err := redisSink.Subscribe(subCtx, hub); err != nil && !errors.Is(err, context.Canceled) {
					logger.Log.Error("Notification subscription ended", zap.Error(err))
				}
			}()
			k.OnCleanup(func(context.Context) error { cancel(); return nil })
			sink = notify.Multi(notify.Log(), redisSink)
		}
	}
	k.set(func() {
		k.sink = sink
		k.registry = feed.NewRegistry(repo, sink, feed.WithConcurrency(cfg.AssemblyConcurrency))
		k.messages = messaging.NewService(repo, sink)
		k.auth = auth.NewService([]byte(cfg.JWTSecret), repo)
	})

	if err := k.Validate(); err != nil {
		_ = k.Cleanup(ctx)
		return nil, err
	}

	if cfg.SessionIdleTimeout > 0 {
		sweepCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
		go k.Registry().RunSweeper(sweepCtx, cfg.SessionIdleTimeout)
		k.OnCleanup(func(context.Context) error { stop(); return nil })
	}
	return k, nil
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChannelPrefix prefixes the per-user pub/sub channel, e.g. "notifications:<user id>"
const ChannelPrefix = "notifications:"

// publishTimeout bounds a publish so a slow redis never delays a mutation
const publishTimeout = 2 * time.Second

// RedisSink publishes notifications as JSON on a per-user redis channel so
// other API instances can forward them to their websocket clients.
type RedisSink struct {
	client redis.UniversalClient
}

// NewRedisClient connects with the pool settings used across the service
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger.Log.Info("Redis client connected", zap.String("address", addr))
	return client, nil
}

// NewRedisSink publishes through client
func NewRedisSink(client redis.UniversalClient) *RedisSink {
	return &RedisSink{client: client}
}

// Channel returns the channel notifications for userID are published on
func Channel(userID string) string {
	return ChannelPrefix + userID
}

func (s *RedisSink) Notify(ctx context.Context, n Notification) {
	if n.UserID == "" {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		logger.WarnWithFields("Failed to encode notification", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.client.Publish(ctx, Channel(n.UserID), payload).Err(); err != nil {
		logger.Log.Warn("Failed to publish notification",
			logger.WithUserID(n.UserID),
			zap.Error(err),
		)
		return
	}
	metrics.RecordNotification("redis", string(n.Level))
}

// Subscribe forwards notifications published for any user to sink until ctx is done
func (s *RedisSink) Subscribe(ctx context.Context, sink Sink) error {
	sub := s.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to notifications: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var n Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				logger.WarnWithFields("Dropping malformed notification", err)
				continue
			}
			sink.Notify(ctx, n)
		}
	}
}

package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/codeconnects/backend/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRateLimitMiddleware creates a fixed-window limiter shared by every
// instance through Redis. A nil client falls back to the in-memory limiter.
func RedisRateLimitMiddleware(client redis.UniversalClient, config RateLimitConfig) gin.HandlerFunc {
	if client == nil {
		return NewRateLimiter(config)
	}
	if config.KeyFunc == nil {
		config.KeyFunc = ViewerOrIPKey
	}
	retryAfter := int(config.Window.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", routeLabel(c), config.KeyFunc(c))
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			// Fail open
			logger.Log.Warn("Rate limit check failed, allowing request",
				zap.String("key", key),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(ctx, key, config.Window).Err(); err != nil {
				logger.Log.Warn("Failed to set rate limit expiration",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		}

		if count > int64(config.Limit) {
			logger.Log.Warn("Rate limit exceeded",
				logger.WithIP(c.ClientIP()),
				zap.String("key", key),
				zap.Int("max_requests", config.Limit),
				zap.Int64("current_requests", count),
			)
			rejectRateLimited(c, config.Limit, retryAfter, "redis")
			return
		}
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/codeconnects/backend/internal/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
	// KeyFunc picks the bucket a request is charged to. Defaults to the viewer, then the client IP.
	KeyFunc func(c *gin.Context) string
}

// DefaultRateLimitConfig returns the limit applied to read traffic
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:   100,
		Window:  time.Minute,
		KeyFunc: ViewerOrIPKey,
	}
}

// AuthRateLimitConfig returns stricter limits for auth endpoints
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:   10,
		Window:  time.Minute,
		KeyFunc: ViewerOrIPKey,
	}
}

// WriteRateLimitConfig returns limits for posts, likes, comments and follows
func WriteRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:   30,
		Window:  time.Minute,
		KeyFunc: ViewerOrIPKey,
	}
}

// ViewerOrIPKey charges authenticated requests to the viewer and anonymous ones to the client IP
func ViewerOrIPKey(c *gin.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return "user:" + id.ID
	}
	return "ip:" + c.ClientIP()
}

// visitor is one key's limiter and when it was last charged
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one golang.org/x/time/rate limiter per key. Each starts
// with a full burst of Limit and refills at Limit per Window.
type RateLimiter struct {
	config   RateLimitConfig
	every    rate.Limit
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

func newRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ViewerOrIPKey
	}
	return &RateLimiter{
		config:   config,
		every:    rate.Every(config.Window / time.Duration(max(config.Limit, 1))),
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// NewRateLimiter creates an in-memory rate limiting middleware
func NewRateLimiter(config RateLimitConfig) gin.HandlerFunc {
	rl := newRateLimiter(config)
	return func(c *gin.Context) {
		allowed, retryAfter := rl.Allow(rl.config.KeyFunc(c))
		if !allowed {
			rejectRateLimited(c, rl.config.Limit, retryAfter, "memory")
			return
		}
		c.Next()
	}
}

// Allow charges one request to key. When it is refused, retryAfter is the
// whole number of seconds until a token is available, at least 1.
func (rl *RateLimiter) Allow(key string) (allowed bool, retryAfter int) {
	now := rl.now()

	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		rl.sweep(now)
		v = &visitor{limiter: rate.NewLimiter(rl.every, rl.config.Limit)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	r := v.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, int(delay/time.Second) + 1
}

// sweep forgets keys idle for a whole window, by which time their limiter is
// full again. It only runs once the map is large. Caller holds rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if len(rl.visitors) < 1024 {
		return
	}
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) >= rl.config.Window {
			delete(rl.visitors, key)
		}
	}
}

func rejectRateLimited(c *gin.Context, limit, retryAfter int, backend string) {
	metrics.RecordRateLimitExceeded(routeLabel(c), c.Request.Method, backend)
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", "0")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"code":        "RATE_LIMITED",
		"message":     "rate limit exceeded",
		"retry_after": retryAfter,
	})
}

// RateLimit returns the in-memory limiter with the default configuration
func RateLimit() gin.HandlerFunc {
	return NewRateLimiter(DefaultRateLimitConfig())
}

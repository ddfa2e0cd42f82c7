package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/codeconnects/backend/internal/session"
	"github.com/codeconnects/backend/internal/util"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config := RateLimitConfig{
		Limit:  3,
		Window: time.Second,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}

	router := gin.New()
	router.Use(NewRateLimiter(config))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "4th request should be rate limited")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	time.Sleep(time.Second + 100*time.Millisecond)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code, "Request after window should succeed")
}

func TestRateLimiterDifferentClients(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config := RateLimitConfig{
		Limit:  2,
		Window: time.Minute,
		KeyFunc: func(c *gin.Context) string {
			return c.GetHeader("X-Client-ID")
		},
	}

	router := gin.New()
	router.Use(NewRateLimiter(config))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	send := func(client string) int {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Client-ID", client)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("client-a"))
	assert.Equal(t, http.StatusOK, send("client-a"))
	assert.Equal(t, http.StatusTooManyRequests, send("client-a"), "Client A should be rate limited")
	assert.Equal(t, http.StatusOK, send("client-b"), "Client B should not be rate limited")
}

func TestViewerOrIPKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var keys []string
	router := gin.New()
	router.GET("/anon", func(c *gin.Context) { keys = append(keys, ViewerOrIPKey(c)) })
	router.GET("/viewer", func(c *gin.Context) {
		util.SetIdentity(c, session.Identity{ID: "u7"})
		keys = append(keys, ViewerOrIPKey(c))
	})

	req := httptest.NewRequest("GET", "/anon", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	router.ServeHTTP(httptest.NewRecorder(), req)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/viewer", nil))

	assert.Equal(t, []string{"ip:10.0.0.9", "user:u7"}, keys)
}

func TestDefaultConfigs(t *testing.T) {
	defaultConfig := DefaultRateLimitConfig()
	assert.Equal(t, 100, defaultConfig.Limit)
	assert.Equal(t, time.Minute, defaultConfig.Window)
	assert.NotNil(t, defaultConfig.KeyFunc)

	authConfig := AuthRateLimitConfig()
	assert.Equal(t, 10, authConfig.Limit)
	assert.Equal(t, time.Minute, authConfig.Window)

	writeConfig := WriteRateLimitConfig()
	assert.Equal(t, 30, writeConfig.Limit)
	assert.Equal(t, time.Minute, writeConfig.Window)
}

func TestRedisRateLimit_NilClientFallsBackToMemory(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RedisRateLimitMiddleware(nil, RateLimitConfig{Limit: 1, Window: time.Minute}))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRedisRateLimit_FailsOpenWhenRedisIsDown(t *testing.T) {
	gin.SetMode(gin.TestMode)

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	router := gin.New()
	router.Use(RedisRateLimitMiddleware(client, RateLimitConfig{Limit: 1, Window: time.Minute}))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiterRetryAfterAndSweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(RateLimitConfig{Limit: 2, Window: time.Minute})
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, _ := rl.Allow("k")
		assert.True(t, ok)
	}
	ok, retryAfter := rl.Allow("k")
	assert.False(t, ok)
	assert.Equal(t, 31, retryAfter, "one token per 30s")

	// a refused request does not consume the next token
	now = now.Add(30 * time.Second)
	ok, _ = rl.Allow("k")
	assert.True(t, ok)

	for i := 0; i < 1024; i++ {
		rl.visitors[strconv.Itoa(i)] = &visitor{limiter: rate.NewLimiter(rl.every, 2), lastSeen: now.Add(-time.Hour)}
	}
	ok, _ = rl.Allow("fresh")
	assert.True(t, ok)
	assert.Len(t, rl.visitors, 2, "idle keys swept, k and fresh remain")
}

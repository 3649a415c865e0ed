package httpmiddleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// SimpleTokenBucket is an in-memory per-IP rate limiter for the general API
// surface. Auth endpoints use the Redis limiter below so their limits hold
// across instances.
type SimpleTokenBucket struct {
	capacity int
	rate     int
	mu       sync.Mutex
	state    map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewSimpleTokenBucket creates a limiter with capacity tokens and rate per minute.
func NewSimpleTokenBucket(capacity, perMinute int) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &SimpleTokenBucket{
		capacity: capacity,
		rate:     perMinute,
		state:    make(map[string]*bucket),
	}
}

// GinMiddleware returns a gin handler enforcing per-IP limits.
func (l *SimpleTokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *SimpleTokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	now := time.Now()
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// RedisWindow is a fixed-window counter limiter keyed per client IP, used on
// registration and login where abuse limits must survive restarts and apply
// across replicas.
type RedisWindow struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisWindow creates a limiter allowing limit requests per window.
func NewRedisWindow(client *redis.Client, prefix string, limit int, window time.Duration) *RedisWindow {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisWindow{client: client, prefix: prefix, limit: limit, window: window}
}

// GinMiddleware returns a gin handler enforcing the window. Redis outages
// fail open; losing a rate limit beats losing logins.
func (l *RedisWindow) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		slot := time.Now().Unix() / int64(l.window.Seconds())
		key := fmt.Sprintf("%s:%s:%d", l.prefix, ip, slot)

		n, err := l.client.Incr(c.Request.Context(), key).Result()
		if err != nil {
			c.Next()
			return
		}
		if n == 1 {
			l.client.Expire(c.Request.Context(), key, l.window)
		}
		if n > int64(l.limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

package httpmiddleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"visitlog/internal/store"
)

// RedisWindow is a per-IP fixed-window rate limiter backed by Redis, so the
// limit holds across instances. When Redis is unavailable it degrades to an
// in-memory token bucket.
type RedisWindow struct {
	perMinute int
	rdb       *store.Redis
	fallback  *SimpleTokenBucket
}

// NewRedisWindow creates a limiter allowing perMinute requests per client IP.
func NewRedisWindow(rdb *store.Redis, perMinute int) *RedisWindow {
	return &RedisWindow{
		perMinute: perMinute,
		rdb:       rdb,
		fallback:  NewSimpleTokenBucket(perMinute, perMinute),
	}
}

// GinMiddleware returns gin handler enforcing per-IP limits.
func (l *RedisWindow) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}

		allowed := true
		if l.rdb != nil {
			key := fmt.Sprintf("visitlog:ratelimit:%s:%d", ip, time.Now().Unix()/60)
			count, err := l.rdb.CountInWindow(c.Request.Context(), key, time.Minute)
			if err != nil {
				allowed = l.fallback.allow(ip)
			} else {
				allowed = count <= int64(l.perMinute)
			}
		} else {
			allowed = l.fallback.allow(ip)
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

// SimpleTokenBucket is an in-memory rate limiter used when Redis is down.
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

// NewSimpleTokenBucket creates limiter with capacity tokens and rate per minute.
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

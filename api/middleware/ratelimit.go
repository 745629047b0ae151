package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sessionscrape/config"
	"github.com/use-agent/sessionscrape/models"
	"golang.org/x/time/rate"
)

// bucketIdle is how long a caller's bucket survives without requests.
const bucketIdle = time.Hour

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller. The caller is the API key
// set by KeySet.Guard, or the client IP when auth is off. One RateLimiter
// can guard several routes so they share the same budget.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRateLimiter creates a RateLimiter from cfg.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes one token from identity's bucket.
func (l *RateLimiter) Allow(identity string, now time.Time) bool {
	l.mu.Lock()
	b, ok := l.buckets[identity]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[identity] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// Evict drops buckets unused since now-bucketIdle and returns how many went.
func (l *RateLimiter) Evict(now time.Time) int {
	cutoff := now.Add(-bucketIdle)
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for id, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, id)
			n++
		}
	}
	return n
}

// Len returns the number of live buckets.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Run evicts idle buckets every interval until ctx is done.
func (l *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := l.Evict(now); n > 0 {
				slog.Debug("rate limit buckets evicted", "count", n)
			}
		}
	}
}

// Guard returns middleware that refuses callers over their budget.
func (l *RateLimiter) Guard(reject RejectFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.GetString(APIKeyContextKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		if !l.Allow(identity, time.Now()) {
			reject(c, http.StatusTooManyRequests, models.ErrorDetail{
				Code:    models.ErrCodeRateLimited,
				Message: "rate limit exceeded, please slow down",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

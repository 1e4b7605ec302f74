package auth

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studieren/recipe_back/gormtool"
	"github.com/studieren/recipe_back/metrics"
	"golang.org/x/time/rate"
)

// RateLimiter implements per-IP rate limiting for the credential endpoints.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiterEntry
	rate     rate.Limit
	burst    int
}

type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter allows reqsPerWindow requests per IP, refilled over window.
func NewRateLimiter(reqsPerWindow int, window time.Duration) *RateLimiter {
	if reqsPerWindow < 1 {
		reqsPerWindow = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rateLimiterEntry),
		rate:     rate.Every(window / time.Duration(reqsPerWindow)),
		burst:    reqsPerWindow,
	}
}

// Allow reports whether a request from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastAccess = time.Now()
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

// Cleanup removes limiters idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := time.Now().Add(-maxIdle)
	for ip, entry := range rl.limiters {
		if entry.lastAccess.Before(threshold) {
			delete(rl.limiters, ip)
		}
	}
}

// Middleware responds 429 once a client IP exceeds its budget.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			metrics.RecordAuthFailure("rate_limited")
			gormtool.Fail(c, http.StatusTooManyRequests, "too many requests")
			return
		}
		c.Next()
	}
}

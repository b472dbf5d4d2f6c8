package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig sets token-bucket limits in requests per second
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Global  float64 `mapstructure:"global_rps"`
	PerIP   float64 `mapstructure:"per_ip_rps"`
	Burst   int     `mapstructure:"burst"`
}

// RateLimiter holds a global bucket and one bucket per client IP
type RateLimiter struct {
	config  RateLimitConfig
	global  *rate.Limiter
	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	global := rate.NewLimiter(rate.Inf, 0)
	if config.Global > 0 {
		global = rate.NewLimiter(rate.Limit(config.Global), config.Burst)
	}
	return &RateLimiter{
		config:  config,
		global:  global,
		clients: make(map[string]*client),
	}
}

func (rl *RateLimiter) forIP(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[ip]
	if !ok {
		limit := rate.Inf
		if rl.config.PerIP > 0 {
			limit = rate.Limit(rl.config.PerIP)
		}
		c = &client{limiter: rate.NewLimiter(limit, rl.config.Burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c.limiter
}

// Cleanup drops clients idle for longer than maxIdle
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, c := range rl.clients {
		if time.Since(c.lastSeen) > maxIdle {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// RateLimit rejects requests over the global or per-IP budget with 429
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.global.Allow() {
			reject(c, "GLOBAL_RATE_LIMIT_EXCEEDED", "Global rate limit exceeded", rl.config.Global)
			return
		}

		limiter := rl.forIP(c.ClientIP())
		if !limiter.Allow() {
			reject(c, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded", rl.config.PerIP)
			return
		}

		if rl.config.PerIP > 0 {
			c.Header("X-RateLimit-Limit", strconv.FormatFloat(rl.config.PerIP, 'f', -1, 64))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(int(math.Max(0, limiter.Tokens()))))
		}

		c.Next()
	}
}

func reject(c *gin.Context, code, message string, rps float64) {
	retryAfter := 1
	if rps > 0 {
		retryAfter = int(math.Ceil(1 / rps))
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"success": false,
		"error": gin.H{
			"code":        code,
			"message":     message,
			"retry_after": retryAfter,
		},
	})
	c.Abort()
}

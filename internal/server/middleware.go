package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Idle client limiters are evicted after limiterTTL.
const (
	limiterTTL     = 10 * time.Minute
	limiterCleanup = 5 * time.Minute
)

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	limit   rate.Limit
	burst   int
	clients *cache.Cache
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: cache.New(limiterTTL, limiterCleanup),
	}
}

// limiterFor returns the client's limiter, creating it on first use.
// Each access refreshes the entry's expiry.
func (rl *rateLimiter) limiterFor(client string) *rate.Limiter {
	if v, ok := rl.clients.Get(client); ok {
		limiter := v.(*rate.Limiter) //nolint:forcetypeassert // only limiters are stored
		rl.clients.SetDefault(client, limiter)
		return limiter
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	if err := rl.clients.Add(client, limiter, cache.DefaultExpiration); err != nil {
		// Another request created it first.
		if v, ok := rl.clients.Get(client); ok {
			return v.(*rate.Limiter) //nolint:forcetypeassert // only limiters are stored
		}
	}
	return limiter
}

func (rl *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiterFor(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Error: "rate limit exceeded, try again later",
			})
			return
		}
		c.Next()
	}
}

// recovery turns a handler panic into a 500 JSON response.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", fmt.Sprint(r),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
					Error: "internal server error",
				})
			}
		}()
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}

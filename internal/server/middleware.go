package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safecheck/safecheck/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 10 * time.Minute
)

// clientLimiters tracks one token bucket per client IP and sweeps
// idle entries so the map cannot grow without bound.
type clientLimiters struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	rps     int
	burst   int
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiters(rps, burst int) *clientLimiters {
	cl := &clientLimiters{
		buckets: make(map[string]*clientBucket),
		rps:     rps,
		burst:   burst,
	}
	go cl.sweep()
	return cl
}

func (cl *clientLimiters) allow(ip string) bool {
	cl.mu.Lock()
	b, ok := cl.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rate.Limit(cl.rps), cl.burst)}
		cl.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	cl.mu.Unlock()

	return b.limiter.Allow()
}

func (cl *clientLimiters) sweep() {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		cl.mu.Lock()
		for ip, b := range cl.buckets {
			if time.Since(b.lastSeen) > limiterIdleTTL {
				delete(cl.buckets, ip)
			}
		}
		cl.mu.Unlock()
	}
}

// RateLimiter returns a Gin middleware enforcing per-IP token-bucket
// rate limiting. rps is the steady-state requests per second; burst is
// the maximum burst size. Denials are counted in the rate-limit metric
// under the "http" source.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	limiters := newClientLimiters(rps, burst)

	return func(c *gin.Context) {
		if !limiters.allow(c.ClientIP()) {
			metrics.RateLimitDenialsTotal.WithLabelValues("http").Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// PrometheusMiddleware records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		metrics.RequestDuration.WithLabelValues(
			c.Request.Method, path,
		).Observe(time.Since(start).Seconds())
	}
}

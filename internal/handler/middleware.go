package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

const (
	limiterMaxEntries = 10000
	limiterIdleAfter  = 10 * time.Minute
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiterPool hands out one token bucket per caller key and evicts idle
// entries once the map grows past maxEntries, so long-running processes
// don't accumulate a limiter per wallet ever seen.
type limiterPool struct {
	mu         sync.Mutex
	entries    map[string]*limiterEntry
	rps        float64
	burst      int
	maxEntries int
	idleAfter  time.Duration
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	return &limiterPool{
		entries:    map[string]*limiterEntry{},
		rps:        rps,
		burst:      burst,
		maxEntries: limiterMaxEntries,
		idleAfter:  limiterIdleAfter,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[key]; ok {
		e.lastSeen = now
		return e.lim
	}
	if len(p.entries) >= p.maxEntries {
		p.evictIdle(now)
	}
	e := &limiterEntry{lim: rate.NewLimiter(rate.Limit(p.rps), p.burst), lastSeen: now}
	p.entries[key] = e
	return e.lim
}

// evictIdle drops entries idle past the threshold; callers hold p.mu. If
// every entry is busy the oldest one goes, keeping the map bounded.
func (p *limiterPool) evictIdle(now time.Time) {
	var oldestKey string
	var oldestSeen time.Time
	for key, e := range p.entries {
		if now.Sub(e.lastSeen) > p.idleAfter {
			delete(p.entries, key)
			continue
		}
		if oldestKey == "" || e.lastSeen.Before(oldestSeen) {
			oldestKey, oldestSeen = key, e.lastSeen
		}
	}
	if len(p.entries) >= p.maxEntries && oldestKey != "" {
		delete(p.entries, oldestKey)
	}
}

// RateLimitMiddleware applies a token bucket per caller, keyed by wallet
// when the request names one and by client IP otherwise.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	pool := newLimiterPool(rps, burst)
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.Query("wallet"))
		if key == "" {
			key = c.ClientIP()
		}
		if !pool.get(key).Allow() {
			Error(c, http.StatusTooManyRequests, "rate limit exceeded", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CronAuthMiddleware guards internal triggers with a shared bearer secret.
func CronAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			Error(c, http.StatusForbidden, "cron trigger disabled", nil)
			c.Abort()
			return
		}
		auth := c.GetHeader("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			Error(c, http.StatusUnauthorized, "invalid cron token", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/logging"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleTTL         = 30 * time.Minute
)

// clientLimiter stores the rate limiter for a specific client.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware applies a token bucket per client.
type RateLimiterMiddleware struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	stop    chan struct{}
	now     func() time.Time
}

// NewRateLimiterMiddleware creates a new RateLimiterMiddleware from the configured bucket.
// Call Stop to end its cleanup goroutine.
func NewRateLimiterMiddleware(cfg *config.Config) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(cfg.RateLimitRefillRate),
		burst:   cfg.RateLimitBucketSize,
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go rm.cleanupClients()
	return rm
}

// Stop ends the background cleanup.
func (rm *RateLimiterMiddleware) Stop() {
	close(rm.stop)
}

// getClientIdentifier creates a key based on IP and SPA session ID.
func getClientIdentifier(c *gin.Context) string {
	return fmt.Sprintf("%s|%s", c.ClientIP(), c.GetHeader("X-SPA"))
}

func (rm *RateLimiterMiddleware) getClientLimiter(identifier string) *rate.Limiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	entry, exists := rm.clients[identifier]
	if !exists {
		entry = &clientLimiter{limiter: rate.NewLimiter(rm.rate, rm.burst)}
		rm.clients[identifier] = entry
	}
	entry.lastSeen = rm.now()
	return entry.limiter
}

// sweep removes clients idle for longer than limiterIdleTTL and reports how many went.
func (rm *RateLimiterMiddleware) sweep() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	count := 0
	for id, client := range rm.clients {
		if rm.now().Sub(client.lastSeen) > limiterIdleTTL {
			delete(rm.clients, id)
			count++
		}
	}
	return count
}

func (rm *RateLimiterMiddleware) cleanupClients() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rm.stop:
			return
		case <-ticker.C:
			if count := rm.sweep(); count > 0 {
				logging.GetLogger().Debugf("Rate limiter cleanup removed %d old client entries", count)
			}
		}
	}
}

// Limit creates the Gin middleware handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := getClientIdentifier(c)
		if !rm.getClientLimiter(clientKey).Allow() {
			logging.GetLogger().WithFields(logrus.Fields{"client": clientKey, "path": c.FullPath()}).Warn("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please slow down and try again.", "variant": "destructive"})
			return
		}
		c.Next()
	}
}

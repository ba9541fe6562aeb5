package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// client holds the token bucket of one IP and the settings it was built with.
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	window   time.Duration
	limit    int
}

// In-memory store for rate limiting. Entries idle for longer than staleAfter are evicted.
var (
	clients         = make(map[string]*client)
	window          = time.Minute
	limit           = 60
	staleAfter      = 10 * time.Minute
	rateLimiterLock sync.Mutex
)

// RateLimiter limits the number of requests per client IP with a token bucket.
//
// Behavior:
//   - Allows bursts of up to `limit` requests, refilled at `limit` per `window`
//     (default: 60 requests per minute).
//   - Identifies clients by their IP address.
//   - If limit exceeded, returns HTTP 429 Too Many Requests.
//
// Usage:
//
//	router := gin.New()
//	router.Use(middleware.RateLimiter())
func RateLimiter() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allow(c.ClientIP(), time.Now()) {
			AbortWithError(c, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}
		c.Next()
	}
}

func allow(ip string, now time.Time) bool {
	rateLimiterLock.Lock()
	defer rateLimiterLock.Unlock()

	for k, cl := range clients {
		if now.Sub(cl.lastSeen) > staleAfter {
			delete(clients, k)
		}
	}

	cl, ok := clients[ip]
	if !ok || cl.window != window || cl.limit != limit {
		every := rate.Every(window / time.Duration(max(limit, 1)))
		cl = &client{limiter: rate.NewLimiter(every, max(limit, 1)), window: window, limit: limit}
		clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

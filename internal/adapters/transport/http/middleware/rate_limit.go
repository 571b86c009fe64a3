package middleware

import (
	"time"

	"github.com/Miraines/MoonyAndStarry/session-service/internal/adapters/transport/http/response"
	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// RateLimitPerIP keeps a token bucket per client IP. Buckets live in an
// expirable LRU, so idle clients are forgotten after entryTTL.
func RateLimitPerIP(
	limit, burst int, // tokens/sec and bucket size
	cacheSize int,
	entryTTL time.Duration,
) gin.HandlerFunc {
	visitors := lru.NewLRU[string, *rate.Limiter](cacheSize, nil, entryTTL)

	return func(c *gin.Context) {
		host := c.ClientIP()

		lim, found := visitors.Get(host)
		if !found {
			lim = rate.NewLimiter(rate.Limit(limit), burst)
			visitors.Add(host, lim)
		}

		if !lim.Allow() {
			response.TooManyRequests(c, "Too many requests")
			return
		}
		c.Next()
	}
}

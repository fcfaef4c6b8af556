package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-user-management/pkg/response"
)

// hitScript counts one hit and returns {count, pttl}. The window starts on
// the first hit; a key that lost its expiry gets it back.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if n == 1 or ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// quota is the outcome of one hit against a fixed window.
type quota struct {
	Limit     int
	Remaining int
	ResetSec  int
	Exceeded  bool
}

func newQuota(limit, count int, ttl time.Duration) quota {
	q := quota{Limit: limit, Remaining: limit - count, Exceeded: count > limit}
	if q.Remaining < 0 {
		q.Remaining = 0
	}
	if ttl > 0 {
		q.ResetSec = int((ttl + time.Second - 1) / time.Second)
	}
	return q
}

func (q quota) writeHeaders(c *gin.Context) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(q.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(q.ResetSec))
	if q.Exceeded && q.ResetSec > 0 {
		c.Header("Retry-After", strconv.Itoa(q.ResetSec))
	}
}

// fixedWindow charges hits to Redis counters that expire after window.
type fixedWindow struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
}

func (w fixedWindow) hit(ctx context.Context, key string) (quota, error) {
	vals, err := hitScript.Run(ctx, w.rdb, []string{key}, w.window.Milliseconds()).Int64Slice()
	if err != nil {
		return quota{}, err
	}
	if len(vals) != 2 {
		return quota{}, fmt.Errorf("rate limit script returned %d values", len(vals))
	}
	return newQuota(w.limit, int(vals[0]), time.Duration(vals[1])*time.Millisecond), nil
}

// AllowFunc returns true for requests that bypass the limiter.
type AllowFunc func(*gin.Context) bool

// RateLimit allows max requests per window for each key. Counters live in
// Redis, so the limit holds across replicas. A Redis failure lets the
// request through. Without a client the middleware is a no-op.
func RateLimit(rdb *redis.Client, max int, window time.Duration, keyFn KeyFunc, allow AllowFunc, logger *logrus.Logger) gin.HandlerFunc {
	if rdb == nil || max <= 0 || window <= 0 || keyFn == nil {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := fixedWindow{rdb: rdb, limit: max, window: window}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || (allow != nil && allow(c)) {
			c.Next()
			return
		}

		key := keyFn(c)
		q, err := limiter.hit(c.Request.Context(), key)
		if err != nil {
			if logger != nil {
				logger.WithError(err).WithField("key", key).Warn("rate limit check failed, allowing request")
			}
			c.Next()
			return
		}

		q.writeHeaders(c)
		if q.Exceeded {
			response.Error[any](c, http.StatusTooManyRequests, "rate limit exceeded", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// KeyFunc maps a request to the Redis counter it is charged against.
type KeyFunc func(c *gin.Context) string

func rateKey(parts ...string) string {
	return "rl:" + strings.Join(parts, ":")
}

// clientIP prefers the address RealIP stored on the context.
func clientIP(c *gin.Context) string {
	for _, ip := range []string{c.GetString("real_ip"), c.ClientIP()} {
		if ip != "" {
			return ip
		}
	}
	return "unknown"
}

// routeOf is the registered route pattern, so /users/alice and /users/bob share a counter.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}

// KeyByIP charges every request from one client to a single counter.
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string { return rateKey("ip", clientIP(c)) }
}

// KeyByIPAndPath keeps a counter per client and route.
func KeyByIPAndPath() KeyFunc {
	return func(c *gin.Context) string { return rateKey("path", routeOf(c), "ip", clientIP(c)) }
}

// KeyByUserID charges the token subject; anonymous callers fall back to their IP.
func KeyByUserID() KeyFunc {
	return func(c *gin.Context) string {
		if uid := c.GetString("userID"); uid != "" {
			return rateKey("user", uid)
		}
		return rateKey("user", "anon", "ip", clientIP(c))
	}
}

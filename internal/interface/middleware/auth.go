package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-ddd-user-management/pkg/helpers"
	"github.com/oksasatya/go-ddd-user-management/pkg/response"
)

// Auth verifies the access token from the Authorization bearer header, falling
// back to the access_token cookie. It sets userID and userRoles in the Gin context.
func Auth(jwt *helpers.JWTVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			c.Abort()
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid access token", nil)
			c.Abort()
			return
		}
		c.Set("userID", claims.UserID)
		c.Set("userRoles", claims.Roles)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

const claimsKey = "authClaims"

// RequireRole lets the request through only when Auth verified a token carrying role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(claimsKey)
		claims, _ := v.(*helpers.Claims)
		if !ok || claims == nil {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			c.Abort()
			return
		}
		if !claims.HasRole(role) {
			response.Error[any](c, http.StatusForbidden, "insufficient role", map[string]string{"required": role})
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if token, err := c.Cookie("access_token"); err == nil {
		return token
	}
	return ""
}

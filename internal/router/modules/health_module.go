package modules

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-ddd-user-management/internal/container"
	"github.com/oksasatya/go-ddd-user-management/pkg/helpers"
	"github.com/oksasatya/go-ddd-user-management/pkg/response"
)

// HealthModule serves GET /api/health, reporting the store and redis reachability.
type HealthModule struct{}

func NewHealthModule() *HealthModule { return &HealthModule{} }

func (m *HealthModule) Register(rg *gin.RouterGroup) {
	rg.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"store": container.GetConfig().StoreDriver}
		healthy := true
		if pool := container.GetPGPool(); pool != nil {
			if err := pool.Ping(ctx); err != nil {
				checks["postgres"], healthy = "down", false
			} else {
				checks["postgres"] = "up"
			}
		}
		if rdb := container.GetRedis(); rdb != nil {
			if err := helpers.PingRedis(ctx, rdb, time.Second); err != nil {
				// limiter fails open, so redis being down is degraded, not unhealthy
				checks["redis"] = "down"
			} else {
				checks["redis"] = "up"
			}
		}
		if !healthy {
			response.Error[any](c, http.StatusServiceUnavailable, "unhealthy", checks)
			return
		}
		response.Success(c, http.StatusOK, checks, "ok", nil)
	})
}

package modules

import (
	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-ddd-user-management/internal/container"
	handlers "github.com/oksasatya/go-ddd-user-management/internal/interface/http"
	"github.com/oksasatya/go-ddd-user-management/internal/interface/middleware"
	"github.com/oksasatya/go-ddd-user-management/pkg/helpers"
)

// UserModule wires user management handlers behind JWT verification. Removals and
// the system user template additionally require the configured admin role.
//
//	GET    /api/users
//	GET    /api/users/search?q=&size=
//	GET    /api/users/:username
//	PUT    /api/users/:username
//	DELETE /api/users/:username
//	PUT    /api/users/:username/password
//	PUT    /api/users/:username/profile
//	GET    /api/users/:username/image
//	PUT    /api/users/:username/image
//	GET    /api/user-templates/:username
//	GET    /api/system-user
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTVerifier
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTVerifier) *UserModule {
	return &UserModule{Handler: h, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	cfg := container.GetConfig()
	rdb := container.GetRedis()
	logger := container.GetLogger()

	auth := rg.Group("/")
	var admin gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if m.JWT != nil {
		auth.Use(middleware.Auth(m.JWT))
		admin = middleware.RequireRole(cfg.AdminRole)
	}
	auth.Use(middleware.RateLimit(rdb, cfg.RateLimitMax, cfg.RateLimitWin, middleware.KeyByUserID(), nil, logger))
	// mutations get a tighter per-route budget
	write := middleware.RateLimit(rdb, cfg.RateLimitWrite, cfg.RateLimitWin, middleware.KeyByIPAndPath(), nil, logger)

	auth.GET("/users", m.Handler.List)
	auth.GET("/users/search", m.Handler.Search)
	auth.GET("/users/:username", m.Handler.Get)
	auth.PUT("/users/:username", write, m.Handler.Save)
	auth.DELETE("/users/:username", admin, write, m.Handler.Remove)
	auth.PUT("/users/:username/password", write, m.Handler.ChangePassword)
	auth.PUT("/users/:username/profile", write, m.Handler.SaveProfile)
	auth.GET("/users/:username/image", m.Handler.GetImage)
	auth.PUT("/users/:username/image", write, m.Handler.UploadImage)
	auth.GET("/user-templates/:username", m.Handler.Template)
	auth.GET("/system-user", admin, m.Handler.SystemUser)
}

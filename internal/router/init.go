package router

import (
	"github.com/oksasatya/go-ddd-user-management/internal/application"
	"github.com/oksasatya/go-ddd-user-management/internal/container"
	"github.com/oksasatya/go-ddd-user-management/internal/domain/policy"
	"github.com/oksasatya/go-ddd-user-management/internal/infrastructure/messaging"
	"github.com/oksasatya/go-ddd-user-management/internal/infrastructure/search"
	"github.com/oksasatya/go-ddd-user-management/internal/infrastructure/storage"
	handlers "github.com/oksasatya/go-ddd-user-management/internal/interface/http"
	"github.com/oksasatya/go-ddd-user-management/internal/router/modules"
)

type UserModuleDeps struct {
	Service *application.Service
	Handler *handlers.UserHandler
}

// BuildUserService wires the user service from the container singletons.
// Optional integrations stay nil when their client was not configured.
func BuildUserService() *application.Service {
	cfg := container.GetConfig()
	repo, tx := container.GetUserStore()

	var events application.EventPublisher
	if pub := container.GetRabbitPub(); pub != nil {
		events = messaging.NewUserEventPublisher(pub)
	}
	var index application.UserIndexer
	if es := container.GetES(); es != nil {
		index = search.NewUserIndex(es, cfg.ESUsersIndex)
	}
	var images application.ImageMirror
	if gcs := container.GetGCS(); gcs != nil && cfg.GCSBucket != "" {
		images = storage.NewImageMirror(gcs, cfg.GCSBucket, cfg.GCSImagePrefix)
	}

	svc := application.NewService(
		repo,
		tx,
		policy.NewPasswordHistory(policy.NewBcryptEncoder(cfg.BcryptCost)),
		events,
		index,
		images,
		container.GetLogger(),
	)
	svc.SystemUsername = cfg.SystemUsername
	svc.MaxImageBytes = cfg.MaxImageBytes
	return svc
}

func buildUserDeps() UserModuleDeps {
	service := BuildUserService()
	handler := handlers.NewUserHandler(service, container.GetLogger(), container.GetConfig().MaxImageBytes)
	return UserModuleDeps{Service: service, Handler: handler}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	userDeps := buildUserDeps()
	r.Add(modules.NewHealthModule())
	r.Add(modules.NewUserModule(userDeps.Handler, container.GetJWT()))
}

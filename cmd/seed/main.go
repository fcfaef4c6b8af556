package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-ddd-user-management/config"
	"github.com/oksasatya/go-ddd-user-management/internal/application"
	"github.com/oksasatya/go-ddd-user-management/internal/container"
	"github.com/oksasatya/go-ddd-user-management/internal/domain/entity"
	"github.com/oksasatya/go-ddd-user-management/internal/router"
	"github.com/oksasatya/go-ddd-user-management/pkg/helpers"
)

const (
	demoUsername = "KNOWN"
	demoPassword = "password123"
)

// Seeds the system user and a demo user through the service, so passwords go
// through the history policy like any other change.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)
	container.SetConfig(cfg)
	container.SetLogger(logger)

	ctx := context.Background()
	closeStore, err := container.OpenUserStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to open user store: %v", err)
	}
	defer closeStore()

	svc := router.BuildUserService()

	sys := svc.CreateSystemUser()
	var sysCred *entity.UserPassword
	if cfg.SystemPassword != "" {
		if sysCred, err = entity.NewUserPassword(sys.Username, cfg.SystemPassword); err != nil {
			log.Fatalf("invalid system password: %v", err)
		}
	}
	saved, err := seed(ctx, svc, sys, sysCred)
	if err != nil {
		log.Fatalf("failed to seed system user: %v", err)
	}
	fmt.Printf("seeded system user: id=%s username=%s\n", saved.ID, saved.Username)

	demo := svc.GetTemplate(demoUsername)
	demo.Fullname = "Demo User"
	demo.Roles = []entity.Role{{Name: "user", Description: "Regular user"}}
	cred, err := entity.NewUserPassword(demoUsername, demoPassword)
	if err != nil {
		log.Fatalf("invalid demo password: %v", err)
	}
	lang, _ := entity.NewUserPreference(demoUsername, "language", "en")
	saved, err = seed(ctx, svc, demo, cred, lang)
	if err != nil {
		log.Fatalf("failed to seed demo user: %v", err)
	}
	fmt.Printf("seeded user: id=%s username=%s password=%s\n", saved.ID, saved.Username, demoPassword)
}

// seed saves the profile. Users that already exist keep their password history,
// so re-running the seeder does not trip the reuse check.
func seed(ctx context.Context, svc *application.Service, u *entity.User, cred *entity.UserPassword, prefs ...entity.UserPreference) (*entity.User, error) {
	exists, err := svc.Exists(ctx, u.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		fmt.Printf("user %s exists, leaving its password alone\n", u.Username)
		cred = nil
	}
	return svc.SaveUserProfile(ctx, u, cred, prefs...)
}

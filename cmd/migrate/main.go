package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-ddd-user-management/config"
	pginfra "github.com/oksasatya/go-ddd-user-management/internal/infrastructure/postgres"
	"github.com/oksasatya/go-ddd-user-management/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-migrate", cfg.Env)
	if err := pginfra.Migrate(cfg.PostgresDSN(), *direction, logger); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	logger.WithField("direction", *direction).Info("migrations done")
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"STORE_DRIVER", "BCRYPT_COST", "RATE_LIMIT_WINDOW", "RABBITMQ_URL", "ELASTICSEARCH_ADDRS", "MAIL_SEND_ENABLED", "ADMIN_ROLE"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, "system", cfg.SystemUsername)
	assert.Equal(t, time.Minute, cfg.RateLimitWin)
	assert.Equal(t, 2<<20, cfg.MaxImageBytes)
	assert.Empty(t, cfg.RabbitMQURL)
	assert.Empty(t, cfg.ESAddrs())
	assert.True(t, cfg.MailSendEnabled)
	assert.Equal(t, "admin", cfg.AdminRole)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("ELASTICSEARCH_ADDRS", "http://es1:9200, ,http://es2:9200")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_NAME", "users")
	t.Setenv("DB_SSLMODE", "require")

	cfg := Load()
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWin)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.ESAddrs())
	assert.Equal(t, "postgres://app:pw@db:5433/users?sslmode=require", cfg.PostgresDSN())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("BCRYPT_COST", "lots")
	t.Setenv("RATE_LIMIT_WINDOW", "soon")
	t.Setenv("HTTP_LOG_ENABLED", "maybe")

	cfg := Load()
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, time.Minute, cfg.RateLimitWin)
	assert.False(t, cfg.HTTPLogEnabled)
}

package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/linemk/ecommerce-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "config_test_*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())
	return tmpFile.Name()
}

func TestMustLoadByPath_Success(t *testing.T) {
	// Устанавливаем обязательные переменные окружения
	t.Setenv("DB_PASSWORD", "mypassword")
	t.Setenv("JWT_SECRET", "mysecret")
	t.Setenv("REDIS_PASSWORD", "redispass")

	content := `
env: "local"
http_server:
  address: "localhost:8080"
  timeout: "4s"
  idle_timeout: "60s"
database:
  host: "localhost"
  port: 5432
  user: "postgres"
  name: "shop"
migrations:
  path: "./migrations"
redis:
  address: "localhost:6379"
  db: 2
  cache_ttl: "1m"
kafka:
  brokers: ["localhost:9092", "localhost:9093"]
  topic: "orders"
orders:
  decrement_stock: true
  idempotency_ttl: "2h"
`
	cfg := config.MustLoadByPath(writeTempConfig(t, content))

	// Проверяем, что конфигурация загружена корректно
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "localhost:8080", cfg.HTTPServer.Address)
	assert.Equal(t, 4*time.Second, cfg.HTTPServer.Timeout)
	assert.Equal(t, 60*time.Second, cfg.HTTPServer.IdleTimeout)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "mypassword", cfg.Database.Password)
	assert.Equal(t, "shop", cfg.Database.Name)
	assert.Equal(t, "mysecret", cfg.JWT.Secret)
	assert.Equal(t, "./migrations", cfg.Migrations.Path)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, "redispass", cfg.Redis.Password)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, cfg.Kafka.Brokers)
	assert.Equal(t, "orders", cfg.Kafka.Topic)
	assert.True(t, cfg.Orders.DecrementStock)
	assert.Equal(t, 2*time.Hour, cfg.Orders.IdempotencyTTL)
}

func TestMustLoadByPath_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "mypassword")
	t.Setenv("JWT_SECRET", "")

	content := `
database:
  user: "postgres"
  name: "shop"
`
	cfg := config.MustLoadByPath(writeTempConfig(t, content))

	assert.Equal(t, "development", cfg.Env)
	assert.Empty(t, cfg.JWT.Secret)
	assert.Equal(t, "localhost:8080", cfg.HTTPServer.Address)
	assert.Equal(t, 5*time.Minute, cfg.Redis.CacheTTL)
	assert.Empty(t, cfg.Redis.Address, "redis is disabled by default")
	assert.Empty(t, cfg.Kafka.Brokers, "kafka is disabled by default")
	assert.False(t, cfg.Orders.DecrementStock, "stock is not decremented by default")
	assert.Equal(t, 24*time.Hour, cfg.Orders.IdempotencyTTL)
}

func TestMustLoadByPath_FileNotFound(t *testing.T) {
	// Ожидаем панику, если файла не существует
	assert.Panics(t, func() {
		config.MustLoadByPath("non_existent_config.yaml")
	})
}

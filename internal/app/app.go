package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/linemk/ecommerce-api/internal/config"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB
	// Redis равен nil, если адрес не задан или сервер недоступен при старте
	Redis *redis.Client
}

// NewApp создаёт новый экземпляр App
func NewApp(log *slog.Logger, cfg *config.Config) (*App, error) {
	// реализуем подключение к БД через DSN
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: log,
		DB:     db,
		Redis:  connectRedis(log, cfg.Redis),
	}

	return app, nil
}

// connectRedis подключает Redis; без него сервис работает без кэша и идемпотентности.
func connectRedis(log *slog.Logger, cfg config.RedisConfig) *redis.Client {
	if cfg.Address == "" {
		log.Info("redis is not configured")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis is unavailable, continuing without it",
			slog.String("address", cfg.Address),
			slog.Any("error", err),
		)
		_ = client.Close()
		return nil
	}

	log.Info("connected to redis", slog.String("address", cfg.Address))
	return client
}

// Close освобождает подключения к БД и Redis.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}

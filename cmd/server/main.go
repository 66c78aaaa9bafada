package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/linemk/ecommerce-api/internal/app"
	"github.com/linemk/ecommerce-api/internal/config"
	"github.com/linemk/ecommerce-api/internal/events"
	"github.com/linemk/ecommerce-api/internal/idempotency"
	"github.com/linemk/ecommerce-api/internal/lib/logger"
	"github.com/linemk/ecommerce-api/internal/lib/metrics"
	"github.com/linemk/ecommerce-api/internal/service"
	"github.com/linemk/ecommerce-api/internal/storage"
	"github.com/linemk/ecommerce-api/internal/storage/cache"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env, "server")
	log.Info("starting app", slog.String("env", cfg.Env))

	if cfg.JWT.Secret == "" {
		panic(errors.New("JWT_SECRET environment variable is not set"))
	}

	// загружаем объект приложения, конфигом и подключениями к БД и Redis
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("failed to close connections", slog.Any("error", err))
		}
	}()

	m := metrics.New()

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	categoryRepo := storage.NewCategoryRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)

	// каталог читается через кэш, оформление заказа идёт напрямую в БД
	// после списания остатка заказ сбрасывает закэшированные товары
	catalogRepo := productRepo
	var catalogCache service.CatalogCache
	if application.Redis != nil {
		cached := cache.NewCachedProductRepository(log, productRepo, application.Redis, cfg.Redis.CacheTTL)
		catalogRepo = cached
		catalogCache = cached
	}

	var orderEvents service.OrderEvents
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewKafkaPublisher(log, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error("failed to close event publisher", slog.Any("error", err))
			}
		}()
		orderEvents = publisher
	}

	ledger := service.NewLedger(orderRepo)
	orderService := service.NewOrderService(
		log, application.DB, userRepo, productRepo, catalogCache, ledger, orderEvents, m, cfg.Orders.DecrementStock,
	)
	if application.Redis != nil {
		store := idempotency.NewStore(application.Redis, "idempotency", cfg.Orders.IdempotencyTTL)
		orderService = idempotency.NewOrderService(log, orderService, store)
	}

	router := app.NewRouter(log, cfg.JWT.Secret, app.Services{
		Orders:     orderService,
		Products:   service.NewProductService(log, catalogRepo, categoryRepo),
		Categories: service.NewCategoryService(log, categoryRepo),
		Users:      service.NewUserService(log, userRepo, ledger),
	}, m)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}

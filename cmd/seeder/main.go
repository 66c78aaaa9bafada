package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/linemk/ecommerce-api/internal/app"
	"github.com/linemk/ecommerce-api/internal/config"
	"github.com/linemk/ecommerce-api/internal/lib/logger"
	"github.com/linemk/ecommerce-api/internal/seed"
	"github.com/linemk/ecommerce-api/internal/storage"
	"github.com/linemk/ecommerce-api/internal/storage/cache"
)

func main() {
	var dataPath string
	flag.StringVar(&dataPath, "data", "", "path to JSON dataset (embedded dataset by default)")

	// MustLoad сам вызывает flag.Parse
	cfg := config.MustLoad()
	log := logger.SetupLogger(cfg.Env, "seeder")

	items, err := loadItems(dataPath)
	if err != nil {
		log.Error("failed to load seed data", slog.Any("error", err))
		os.Exit(1)
	}

	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.Close()

	productRepo := storage.NewProductRepository(application.DB)
	seeder := seed.NewSeeder(log, application.DB, storage.NewCategoryRepository(application.DB), productRepo)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := seeder.Run(ctx, items)
	if err != nil {
		log.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("seed data applied", slog.Int("categories", res.Categories), slog.Int("products", res.Products))

	// upsert меняет цены и остатки мимо кэша каталога
	if application.Redis != nil {
		catalog := cache.NewCachedProductRepository(log, productRepo, application.Redis, cfg.Redis.CacheTTL)
		if err := catalog.Purge(ctx); err != nil {
			log.Warn("failed to purge product cache", slog.Any("error", err))
		}
	}
}

func loadItems(path string) ([]seed.Item, error) {
	if path == "" {
		return seed.DefaultItems()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return seed.Parse(data)
}

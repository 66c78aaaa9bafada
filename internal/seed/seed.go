// Package seed заливает справочник категорий и товаров из JSON.
// Повторный запуск ничего не ломает: категории добавляются, только если их нет,
// товары с тем же именем обновляются.
package seed

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/linemk/ecommerce-api/internal/domain/models"
	"github.com/linemk/ecommerce-api/internal/storage"
)

//go:embed data.json
var defaultData []byte

// Item — товар набора данных; категория задаётся именем.
type Item struct {
	Name        string          `json:"name" validate:"required,max=50"`
	Description string          `json:"description" validate:"required"`
	Price       decimal.Decimal `json:"price" validate:"gt=0"`
	Stock       int             `json:"stock" validate:"gte=0"`
	ImgURL      string          `json:"imgUrl"`
	Category    string          `json:"category" validate:"required,max=50"`
}

// Result — сколько категорий и товаров прошло через батч.
type Result struct {
	Categories int
	Products   int
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}()

// DefaultItems возвращает встроенный набор данных.
func DefaultItems() ([]Item, error) {
	return Parse(defaultData)
}

// Parse разбирает и проверяет набор данных. Ошибка в любом товаре отклоняет весь набор.
func Parse(data []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode seed data: %w", err)
	}
	for i, item := range items {
		if err := validate.Struct(item); err != nil {
			return nil, fmt.Errorf("invalid seed item #%d (%q): %w", i, item.Name, err)
		}
	}
	return items, nil
}

type Seeder struct {
	log          *slog.Logger
	db           *sql.DB
	categoryRepo storage.CategoryStorage
	productRepo  storage.ProductStorage
}

func NewSeeder(log *slog.Logger, db *sql.DB, categoryRepo storage.CategoryStorage, productRepo storage.ProductStorage) *Seeder {
	return &Seeder{
		log:          log,
		db:           db,
		categoryRepo: categoryRepo,
		productRepo:  productRepo,
	}
}

// Run выполняет весь батч в одной транзакции: сначала категории, затем товары.
func (s *Seeder) Run(ctx context.Context, items []Item) (Result, error) {
	const op = "seed.Seeder.Run"
	logger := s.log.With(slog.String("op", op), slog.Int("items", len(items)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%s: begin tx: %w", op, err)
	}

	res, err := s.apply(ctx, tx, items)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("failed to rollback", slog.Any("error", rbErr))
		}
		logger.Error("seeding failed", slog.Any("error", err))
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit", slog.Any("error", err))
		return Result{}, fmt.Errorf("%s: commit: %w", op, err)
	}

	logger.Info("seeding completed", slog.Int("categories", res.Categories), slog.Int("products", res.Products))
	return res, nil
}

func (s *Seeder) apply(ctx context.Context, tx *sql.Tx, items []Item) (Result, error) {
	categories := make(map[string]*models.Category)
	for _, item := range items {
		if _, ok := categories[item.Category]; ok {
			continue
		}
		category, err := s.categoryRepo.EnsureCategoryTx(ctx, tx, item.Category)
		if err != nil {
			return Result{}, err
		}
		categories[item.Category] = category
	}

	for _, item := range items {
		product := &models.Product{
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price,
			Stock:       item.Stock,
			ImgURL:      item.ImgURL,
			Category:    categories[item.Category],
		}
		if err := s.productRepo.UpsertProductTx(ctx, tx, product); err != nil {
			return Result{}, err
		}
	}

	return Result{Categories: len(categories), Products: len(items)}, nil
}

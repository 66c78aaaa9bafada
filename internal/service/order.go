package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/linemk/ecommerce-api/internal/domain/models"
	"github.com/linemk/ecommerce-api/internal/storage"
)

// PlacedOrder — результат оформления заказа.
type PlacedOrder struct {
	OrderID       uuid.UUID       `json:"orderId"`
	OrderDate     time.Time       `json:"orderDate"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	OrderDetailID uuid.UUID       `json:"orderDetailId"`
}

func (p PlacedOrder) MarshalJSON() ([]byte, error) {
	type plain PlacedOrder
	return json.Marshal(struct {
		plain
		TotalPrice string `json:"totalPrice"`
	}{plain: plain(p), TotalPrice: models.Money(p.TotalPrice)})
}

type OrderService interface {
	// PlaceOrder оформляет заказ пользователя из товаров в заданном порядке.
	PlaceOrder(ctx context.Context, userID uuid.UUID, productIDs []string) (*PlacedOrder, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// OrderEvents получает уведомление о закоммиченном заказе.
type OrderEvents interface {
	OrderPlaced(ctx context.Context, order *models.Order) error
}

// CatalogCache сбрасывает закэшированные товары после того, как заказ изменил их остаток.
type CatalogCache interface {
	InvalidateProducts(ctx context.Context, ids ...uuid.UUID)
}

// OrderMetrics учитывает исходы оформления заказов.
type OrderMetrics interface {
	ObservePlacement(outcome string, total decimal.Decimal)
}

// Исходы оформления для метрик.
const (
	OutcomePlaced   = "placed"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

type orderService struct {
	log            *slog.Logger
	db             *sql.DB
	userRepo       storage.UserStorage
	productRepo    storage.ProductStorage
	catalog        CatalogCache
	ledger         *Ledger
	events         OrderEvents
	metrics        OrderMetrics
	decrementStock bool
}

// NewOrderService собирает сервис заказов. catalog, events и metrics могут быть nil.
// productRepo должен ходить в БД напрямую, без кэша: проверка остатка идёт под блокировкой строки.
func NewOrderService(
	log *slog.Logger,
	db *sql.DB,
	userRepo storage.UserStorage,
	productRepo storage.ProductStorage,
	catalog CatalogCache,
	ledger *Ledger,
	events OrderEvents,
	metrics OrderMetrics,
	decrementStock bool,
) OrderService {
	return &orderService{
		log:            log,
		db:             db,
		userRepo:       userRepo,
		productRepo:    productRepo,
		catalog:        catalog,
		ledger:         ledger,
		events:         events,
		metrics:        metrics,
		decrementStock: decrementStock,
	}
}

// PlaceOrder выполняет всё оформление в одной транзакции.
// Проверки идут строго по порядку и останавливаются на первой ошибке; до первой записи
// проверяются пользователь и все товары. Любая ошибка откатывает транзакцию целиком.
func (s *orderService) PlaceOrder(ctx context.Context, userID uuid.UUID, productIDs []string) (*PlacedOrder, error) {
	const op = "service.OrderService.PlaceOrder"
	logger := s.log.With(slog.String("op", op), slog.String("userID", userID.String()), slog.Int("products", len(productIDs)))
	logger.Info("placing order")

	placed, order, err := s.placeInTx(ctx, logger, userID, productIDs)
	if err != nil {
		s.observe(outcomeOf(err), decimal.Zero)
		return nil, err
	}

	s.observe(OutcomePlaced, placed.TotalPrice)
	if s.decrementStock && s.catalog != nil {
		var ids []uuid.UUID
		for _, line := range order.Lines {
			for _, product := range line.Products {
				ids = append(ids, product.ID)
			}
		}
		s.catalog.InvalidateProducts(context.WithoutCancel(ctx), ids...)
	}
	if s.events != nil {
		if err := s.events.OrderPlaced(ctx, order); err != nil {
			// заказ уже закоммичен, событие не влияет на ответ
			logger.Error("failed to publish order event", slog.Any("error", err))
		}
	}

	logger.Info("order placed",
		slog.String("orderID", placed.OrderID.String()),
		slog.String("total", placed.TotalPrice.StringFixed(2)),
	)
	return placed, nil
}

func (s *orderService) placeInTx(ctx context.Context, logger *slog.Logger, userID uuid.UUID, productIDs []string) (*PlacedOrder, *models.Order, error) {
	const op = "service.OrderService.PlaceOrder"

	if len(productIDs) == 0 {
		return nil, nil, invalidArgument("products must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	// Пользователь
	user, err := s.userRepo.GetUserByIDTx(ctx, tx, userID)
	if err != nil {
		s.rollback(logger, tx)
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("user not found")
			return nil, nil, notFound("User not found")
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	// Товары по порядку: формат id, существование, остаток
	products := make([]*models.Product, 0, len(productIDs))
	total := decimal.Zero
	for _, rawID := range productIDs {
		product, err := s.checkProduct(ctx, tx, rawID)
		if err != nil {
			s.rollback(logger, tx)
			logger.Warn("product check failed", slog.String("productID", rawID), slog.Any("error", err))
			return nil, nil, err
		}
		products = append(products, product)
		total = total.Add(product.Price)
	}

	if s.decrementStock {
		for _, product := range products {
			if err := s.productRepo.DecrementStockTx(ctx, tx, product.ID); err != nil {
				s.rollback(logger, tx)
				if errors.Is(err, storage.ErrOutOfStock) {
					logger.Warn("stock exhausted", slog.String("productID", product.ID.String()))
					return nil, nil, invalidArgument("Product with id %s has no stock available", product.ID)
				}
				logger.Error("failed to decrement stock", slog.Any("error", err))
				return nil, nil, fmt.Errorf("%s: failed to decrement stock: %w", op, err)
			}
		}
	}

	order, err := s.ledger.CreateOrder(ctx, tx, user)
	if err != nil {
		s.rollback(logger, tx)
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	line, err := s.ledger.CreateLine(ctx, tx, order, products, total)
	if err != nil {
		s.rollback(logger, tx)
		logger.Error("failed to create order detail", slog.Any("error", err))
		return nil, nil, fmt.Errorf("%s: failed to create order detail: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return &PlacedOrder{
		OrderID:       order.ID,
		OrderDate:     order.Date,
		TotalPrice:    line.Price,
		OrderDetailID: line.ID,
	}, order, nil
}

// checkProduct разбирает id, читает товар под блокировкой и проверяет остаток.
func (s *orderService) checkProduct(ctx context.Context, tx *sql.Tx, rawID string) (*models.Product, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, invalidArgument("Invalid product id: %s", rawID)
	}

	product, err := s.productRepo.LockProductByIDTx(ctx, tx, id, s.decrementStock)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrProductNotFound):
			return nil, notFound("Product with id %s not found", rawID)
		case errors.Is(err, storage.ErrResourceLocked):
			return nil, conflict("Product with id %s is locked by another order, please try again", rawID)
		}
		return nil, fmt.Errorf("failed to get product %s: %w", rawID, err)
	}

	if product.Stock <= 0 {
		return nil, invalidArgument("Product with id %s has no stock available", rawID)
	}
	return product, nil
}

func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	const op = "service.OrderService.GetOrder"
	logger := s.log.With(slog.String("op", op), slog.String("orderID", id.String()))

	order, err := s.ledger.GetOrderByID(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Error("failed to get order", slog.Any("error", err))
		}
		return nil, err
	}
	return order, nil
}

func (s *orderService) rollback(logger *slog.Logger, tx *sql.Tx) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}

func (s *orderService) observe(outcome string, total decimal.Decimal) {
	if s.metrics != nil {
		s.metrics.ObservePlacement(outcome, total)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalidArgument):
		return OutcomeInvalid
	case errors.Is(err, ErrConflict):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}

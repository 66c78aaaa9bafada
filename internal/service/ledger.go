package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/linemk/ecommerce-api/internal/domain/models"
	"github.com/linemk/ecommerce-api/internal/storage"
)

// Ledger отвечает за создание заказов и их позиций. Цена позиции фиксируется
// при создании и дальше не пересчитывается.
type Ledger struct {
	orders storage.OrderStorage
	now    func() time.Time
}

func NewLedger(orders storage.OrderStorage) *Ledger {
	return &Ledger{orders: orders, now: time.Now}
}

// SetClock подменяет источник времени (для тестов).
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// CreateOrder создаёт заказ пользователя внутри переданной транзакции.
func (l *Ledger) CreateOrder(ctx context.Context, tx *sql.Tx, user *models.User) (*models.Order, error) {
	const op = "service.Ledger.CreateOrder"

	// postgres хранит timestamptz с точностью до микросекунд
	order := &models.Order{
		ID:     uuid.New(),
		UserID: user.ID,
		Date:   l.now().UTC().Truncate(time.Microsecond),
		Lines:  []*models.OrderLine{},
	}
	if err := l.orders.CreateOrder(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

// CreateLine создаёт позицию заказа. price обязан совпадать с суммой цен товаров.
func (l *Ledger) CreateLine(ctx context.Context, tx *sql.Tx, order *models.Order, products []*models.Product, price decimal.Decimal) (*models.OrderLine, error) {
	const op = "service.Ledger.CreateLine"

	if len(products) == 0 {
		return nil, invalidArgument("order detail must reference at least one product")
	}
	if sum := models.SumPrices(products); !sum.Equal(price) {
		return nil, invalidArgument("price mismatch: got %s, products sum to %s", price.StringFixed(2), sum.StringFixed(2))
	}

	line := &models.OrderLine{
		ID:       uuid.New(),
		OrderID:  order.ID,
		Price:    price,
		Products: products,
	}
	if err := l.orders.CreateOrderLine(ctx, tx, line); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	order.Lines = append(order.Lines, line)
	return line, nil
}

func (l *Ledger) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	const op = "service.Ledger.GetOrderByID"

	order, err := l.orders.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, notFound("Order with id %s not found", id)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

func (l *Ledger) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	const op = "service.Ledger.GetOrdersByUserID"

	orders, err := l.orders.GetOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, nil
}

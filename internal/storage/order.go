package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/linemk/ecommerce-api/internal/domain/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStorage описывает методы для работы с заказами и их позициями.
type OrderStorage interface {
	// CreateOrder вставляет новый заказ в таблицу orders с использованием транзакции.
	CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error
	// CreateOrderLine вставляет позицию заказа и по строке связи на каждый товар (с сохранением порядка).
	CreateOrderLine(ctx context.Context, tx *sql.Tx, line *models.OrderLine) error
	// GetOrderByID возвращает заказ с позициями и товарами.
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// GetOrdersByUserID возвращает заказы пользователя, новые первыми.
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Order, error)
}

// orderRepository — конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `INSERT INTO orders (id, user_id, date) VALUES ($1, $2, $3)`
	_, err := tx.ExecContext(ctx, query, order.ID, order.UserID, order.Date)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *orderRepository) CreateOrderLine(ctx context.Context, tx *sql.Tx, line *models.OrderLine) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO order_details (id, price, order_id) VALUES ($1, $2, $3)`,
		line.ID, line.Price, line.OrderID)
	if err != nil {
		return fmt.Errorf("failed to create order detail: %w", err)
	}

	for position, product := range line.Products {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO order_detail_products (order_detail_id, position, product_id) VALUES ($1, $2, $3)`,
			line.ID, position, product.ID)
		if err != nil {
			return fmt.Errorf("failed to link product %s to order detail: %w", product.ID, err)
		}
	}
	return nil
}

const orderSelect = `
	SELECT o.id, o.user_id, o.date, d.id, d.price,
	       p.id, p.name, p.description, p.price, p.stock, p.img_url, c.id, c.name
	FROM orders o
	LEFT JOIN order_details d ON d.order_id = o.id
	LEFT JOIN order_detail_products odp ON odp.order_detail_id = d.id
	LEFT JOIN products p ON p.id = odp.product_id
	LEFT JOIN categories c ON c.id = p.category_id`

func (r *orderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, orderSelect+`
	WHERE o.id = $1
	ORDER BY d.id, odp.position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	defer rows.Close()

	orders, err := assembleOrders(rows)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return orders[0], nil
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, orderSelect+`
	WHERE o.user_id = $1
	ORDER BY o.date DESC, o.id, d.id, odp.position`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	return assembleOrders(rows)
}

// assembleOrders собирает заказы из плоских строк LEFT JOIN. Порядок заказов, позиций
// и товаров внутри позиции берётся из порядка строк.
func assembleOrders(rows *sql.Rows) ([]*models.Order, error) {
	var orders []*models.Order
	byID := make(map[uuid.UUID]*models.Order)
	lines := make(map[uuid.UUID]*models.OrderLine)

	for rows.Next() {
		var (
			orderID, userID      uuid.UUID
			date                 sql.NullTime
			lineID, productID    uuid.NullUUID
			linePrice, unitPrice decimal.NullDecimal
			name, description    sql.NullString
			imgURL               sql.NullString
			stock                sql.NullInt64
			categoryID           uuid.NullUUID
			categoryName         sql.NullString
		)
		err := rows.Scan(&orderID, &userID, &date, &lineID, &linePrice,
			&productID, &name, &description, &unitPrice, &stock, &imgURL, &categoryID, &categoryName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}

		order, ok := byID[orderID]
		if !ok {
			order = &models.Order{ID: orderID, UserID: userID, Date: date.Time, Lines: []*models.OrderLine{}}
			byID[orderID] = order
			orders = append(orders, order)
		}
		if !lineID.Valid {
			continue
		}

		line, ok := lines[lineID.UUID]
		if !ok {
			line = &models.OrderLine{
				ID:       lineID.UUID,
				OrderID:  orderID,
				Price:    linePrice.Decimal,
				Products: []*models.Product{},
			}
			lines[lineID.UUID] = line
			order.Lines = append(order.Lines, line)
		}
		if !productID.Valid {
			continue
		}

		product := &models.Product{
			ID:          productID.UUID,
			Name:        name.String,
			Description: description.String,
			Price:       unitPrice.Decimal,
			Stock:       int(stock.Int64),
			ImgURL:      imgURL.String,
		}
		if categoryID.Valid {
			product.Category = &models.Category{ID: categoryID.UUID, Name: categoryName.String}
		}
		line.Products = append(line.Products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

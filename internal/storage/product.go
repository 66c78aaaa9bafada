package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/linemk/ecommerce-api/internal/domain/models"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductExists   = errors.New("product with this name already exists")
	ErrProductInUse    = errors.New("product is referenced by orders")
	ErrOutOfStock      = errors.New("no stock available")
	ErrResourceLocked  = errors.New("resource is locked, please try again")
)

// ProductStorage — каталог товаров.
type ProductStorage interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	// LockProductByIDTx читает товар внутри транзакции с блокировкой строки.
	// forUpdate=true берёт эксклюзивную блокировку (перед списанием остатка).
	LockProductByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, forUpdate bool) (*models.Product, error)
	// DecrementStockTx атомарно уменьшает остаток на единицу или возвращает ErrOutOfStock.
	DecrementStockTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	// UpdateProductFunc читает товар из БД под FOR UPDATE, применяет apply и записывает
	// результат в той же транзакции. Ошибка apply откатывает транзакцию и возвращается как есть.
	UpdateProductFunc(ctx context.Context, id uuid.UUID, apply func(*models.Product) error) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	// UpsertProductTx вставляет товар или обновляет описание, цену, картинку и остаток по имени.
	UpsertProductTx(ctx context.Context, tx *sql.Tx, product *models.Product) error
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт новый репозиторий товаров.
func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

const productSelect = `
	SELECT p.id, p.name, p.description, p.price, p.stock, p.img_url, c.id, c.name
	FROM products p
	LEFT JOIN categories c ON p.category_id = c.id`

func scanProduct(row interface{ Scan(dest ...any) error }) (*models.Product, error) {
	product := &models.Product{}
	var categoryID uuid.NullUUID
	var categoryName sql.NullString
	err := row.Scan(&product.ID, &product.Name, &product.Description, &product.Price,
		&product.Stock, &product.ImgURL, &categoryID, &categoryName)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		product.Category = &models.Category{ID: categoryID.UUID, Name: categoryName.String}
	}
	return product, nil
}

func (r *productRepository) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, productSelect+" ORDER BY p.name")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := scanProduct(r.db.QueryRowContext(ctx, productSelect+" WHERE p.id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (r *productRepository) LockProductByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, forUpdate bool) (*models.Product, error) {
	lock := "FOR SHARE OF p NOWAIT"
	if forUpdate {
		lock = "FOR UPDATE OF p NOWAIT"
	}

	product, err := scanProduct(tx.QueryRowContext(ctx, productSelect+" WHERE p.id = $1 "+lock, id))
	if err != nil {
		if pqCode(err) == pqLockNotAvailable {
			return nil, fmt.Errorf("%w: %v", ErrResourceLocked, err)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (r *productRepository) DecrementStockTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, "UPDATE products SET stock = stock - 1 WHERE id = $1 AND stock > 0", id)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOutOfStock
	}
	return nil
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, name, description, price, stock, img_url, category_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		product.ID, product.Name, product.Description, product.Price, product.Stock, product.ImgURL,
		nullCategory(product),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrProductExists
		}
		if isForeignKeyViolation(err) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

func (r *productRepository) UpdateProductFunc(ctx context.Context, id uuid.UUID, apply func(*models.Product) error) (*models.Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	// после Commit откат ничего не делает
	defer func() { _ = tx.Rollback() }()

	product, err := r.LockProductByIDTx(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if err := apply(product); err != nil {
		return nil, err
	}
	product.ID = id

	if err := updateProductTx(ctx, tx, product); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return product, nil
}

func updateProductTx(ctx context.Context, tx *sql.Tx, product *models.Product) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET name = $1, description = $2, price = $3, stock = $4, img_url = $5, category_id = $6
		 WHERE id = $7`,
		product.Name, product.Description, product.Price, product.Stock, product.ImgURL,
		nullCategory(product), product.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrProductExists
		}
		if isForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProductInUse
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) UpsertProductTx(ctx context.Context, tx *sql.Tx, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO products (id, name, description, price, stock, img_url, category_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (name) DO UPDATE
		 SET description = EXCLUDED.description, price = EXCLUDED.price,
		     img_url = EXCLUDED.img_url, stock = EXCLUDED.stock`,
		product.ID, product.Name, product.Description, product.Price, product.Stock, product.ImgURL,
		nullCategory(product),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product %q: %w", product.Name, err)
	}
	return nil
}

func nullCategory(product *models.Product) uuid.NullUUID {
	id := product.CategoryID()
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

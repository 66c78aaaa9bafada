package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/linemk/ecommerce-api/internal/domain/models"
)

var ErrCategoryNotFound = errors.New("category not found")

type CategoryStorage interface {
	ListCategories(ctx context.Context) ([]*models.Category, error)
	GetCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	// EnsureCategoryTx создаёт категорию, если её ещё нет, и возвращает актуальную запись.
	EnsureCategoryTx(ctx context.Context, tx *sql.Tx, name string) (*models.Category, error)
}

type categoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) CategoryStorage {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		category := &models.Category{}
		if err := rows.Scan(&category.ID, &category.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) GetCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	category := &models.Category{}
	err := r.db.QueryRowContext(ctx, "SELECT id, name FROM categories WHERE id = $1", id).
		Scan(&category.ID, &category.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

// EnsureCategoryTx — insert-or-ignore по имени, затем чтение id существующей строки.
func (r *categoryRepository) EnsureCategoryTx(ctx context.Context, tx *sql.Tx, name string) (*models.Category, error) {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO categories (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING",
		uuid.New(), name)
	if err != nil {
		return nil, fmt.Errorf("failed to insert category %q: %w", name, err)
	}

	category := &models.Category{}
	err = tx.QueryRowContext(ctx, "SELECT id, name FROM categories WHERE name = $1", name).
		Scan(&category.ID, &category.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read category %q: %w", name, err)
	}
	return category, nil
}

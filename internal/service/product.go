package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/linemk/ecommerce-api/internal/domain/models"
	"github.com/linemk/ecommerce-api/internal/storage"
)

// ProductInput — данные нового товара.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImgURL      string
	CategoryID  uuid.UUID
}

// ProductPatch — частичное обновление, nil означает «не менять».
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	ImgURL      *string
	CategoryID  *uuid.UUID
}

type ProductService interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	log          *slog.Logger
	productRepo  storage.ProductStorage
	categoryRepo storage.CategoryStorage
}

func NewProductService(log *slog.Logger, productRepo storage.ProductStorage, categoryRepo storage.CategoryStorage) ProductService {
	return &productService{
		log:          log,
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
	}
}

func (s *productService) ListProducts(ctx context.Context) ([]*models.Product, error) {
	const op = "service.ProductService.ListProducts"

	products, err := s.productRepo.ListProducts(ctx)
	if err != nil {
		s.log.Error("failed to list products", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if products == nil {
		products = []*models.Product{}
	}
	return products, nil
}

func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	const op = "service.ProductService.GetProduct"

	product, err := s.productRepo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, notFound("Product with id %s not found", id)
		}
		s.log.Error("failed to get product", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return product, nil
}

func (s *productService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	const op = "service.ProductService.CreateProduct"
	logger := s.log.With(slog.String("op", op), slog.String("name", in.Name))

	category, err := s.resolveCategory(ctx, in.CategoryID)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImgURL:      in.ImgURL,
		Category:    category,
	}
	created, err := s.productRepo.CreateProduct(ctx, product)
	if err != nil {
		if mapped := mapProductWriteError(err, in.Name, in.CategoryID); mapped != nil {
			logger.Warn("product rejected", slog.Any("error", err))
			return nil, mapped
		}
		logger.Error("failed to create product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("product created", slog.String("productID", created.ID.String()))
	return created, nil
}

// UpdateProduct применяет патч к актуальной строке из БД под блокировкой,
// поэтому незатронутые поля (в том числе остаток) не перезаписываются устаревшими значениями.
func (s *productService) UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (*models.Product, error) {
	const op = "service.ProductService.UpdateProduct"
	logger := s.log.With(slog.String("op", op), slog.String("productID", id.String()))

	// категорию проверяем до блокировки строки товара
	var category *models.Category
	if patch.CategoryID != nil {
		var err error
		if category, err = s.resolveCategory(ctx, *patch.CategoryID); err != nil {
			return nil, err
		}
	}

	product, err := s.productRepo.UpdateProductFunc(ctx, id, func(product *models.Product) error {
		if patch.Name != nil {
			product.Name = *patch.Name
		}
		if patch.Description != nil {
			product.Description = *patch.Description
		}
		if patch.Price != nil {
			product.Price = *patch.Price
		}
		if patch.Stock != nil {
			product.Stock = *patch.Stock
		}
		if patch.ImgURL != nil {
			product.ImgURL = *patch.ImgURL
		}
		if patch.CategoryID != nil {
			product.Category = category
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrProductNotFound):
			return nil, notFound("Product with id %s not found", id)
		case errors.Is(err, storage.ErrResourceLocked):
			logger.Warn("product row is locked", slog.Any("error", err))
			return nil, conflict("Product with id %s is being updated, please retry", id)
		}
		name := ""
		if patch.Name != nil {
			name = *patch.Name
		}
		categoryID := uuid.Nil
		if patch.CategoryID != nil {
			categoryID = *patch.CategoryID
		}
		if mapped := mapProductWriteError(err, name, categoryID); mapped != nil {
			logger.Warn("product update rejected", slog.Any("error", err))
			return nil, mapped
		}
		logger.Error("failed to update product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("product updated")
	return product, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	const op = "service.ProductService.DeleteProduct"
	logger := s.log.With(slog.String("op", op), slog.String("productID", id.String()))

	if err := s.productRepo.DeleteProduct(ctx, id); err != nil {
		switch {
		case errors.Is(err, storage.ErrProductNotFound):
			return notFound("Product with id %s not found", id)
		case errors.Is(err, storage.ErrProductInUse):
			return invalidArgument("Product with id %s is referenced by existing orders", id)
		}
		logger.Error("failed to delete product", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("product deleted")
	return nil
}

// resolveCategory проверяет, что категория существует. uuid.Nil — товар без категории.
func (s *productService) resolveCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	category, err := s.categoryRepo.GetCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrCategoryNotFound) {
			return nil, notFound("Category with id %s not found", id)
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

func mapProductWriteError(err error, name string, categoryID uuid.UUID) error {
	switch {
	case errors.Is(err, storage.ErrProductExists):
		return invalidArgument("Product with name %s already exists", name)
	case errors.Is(err, storage.ErrCategoryNotFound):
		return notFound("Category with id %s not found", categoryID)
	}
	return nil
}

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/linemk/ecommerce-api/internal/service"
)

// ProductRequest — тело POST /api/products.
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,max=50"`
	Description string          `json:"description" validate:"required"`
	Price       decimal.Decimal `json:"price" validate:"required,gt=0"`
	Stock       *int            `json:"stock" validate:"required,gte=0"`
	ImgURL      string          `json:"imgUrl" validate:"omitempty,url"`
	Category    string          `json:"category" validate:"required,uuid"`
}

// ProductPatchRequest — тело PUT /api/products/{id}, все поля необязательны.
type ProductPatchRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=50"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"omitempty,gt=0"`
	Stock       *int             `json:"stock" validate:"omitempty,gte=0"`
	ImgURL      *string          `json:"imgUrl" validate:"omitempty,url"`
	Category    *string          `json:"category" validate:"omitempty,uuid"`
}

// ListProductsHandler обрабатывает GET /api/products.
func ListProductsHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListProductsHandler"
		logger := log.With(slog.String("op", op))

		products, err := productService.ListProducts(r.Context())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, products)
	}
}

// GetProductHandler обрабатывает GET /api/products/{id}.
func GetProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetProductHandler"
		logger := log.With(slog.String("op", op))

		id, ok := pathUUID(w, r, logger, "id")
		if !ok {
			return
		}

		product, err := productService.GetProduct(r.Context(), id)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	}
}

// CreateProductHandler обрабатывает POST /api/products.
func CreateProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateProductHandler"
		logger := log.With(slog.String("op", op))

		var req ProductRequest
		if !decodeJSON(w, r, logger, &req) {
			return
		}
		if !validateRequest(w, logger, req) {
			return
		}

		product, err := productService.CreateProduct(r.Context(), service.ProductInput{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Stock:       *req.Stock,
			ImgURL:      req.ImgURL,
			CategoryID:  uuid.MustParse(req.Category),
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, product)
	}
}

// UpdateProductHandler обрабатывает PUT /api/products/{id}.
func UpdateProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateProductHandler"
		logger := log.With(slog.String("op", op))

		id, ok := pathUUID(w, r, logger, "id")
		if !ok {
			return
		}

		var req ProductPatchRequest
		if !decodeJSON(w, r, logger, &req) {
			return
		}
		if !validateRequest(w, logger, req) {
			return
		}

		patch := service.ProductPatch{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
			ImgURL:      req.ImgURL,
		}
		if req.Category != nil {
			categoryID := uuid.MustParse(*req.Category)
			patch.CategoryID = &categoryID
		}

		product, err := productService.UpdateProduct(r.Context(), id, patch)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	}
}

// DeleteProductHandler обрабатывает DELETE /api/products/{id}.
func DeleteProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteProductHandler"
		logger := log.With(slog.String("op", op))

		id, ok := pathUUID(w, r, logger, "id")
		if !ok {
			return
		}

		if err := productService.DeleteProduct(r.Context(), id); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListCategoriesHandler обрабатывает GET /api/categories.
func ListCategoriesHandler(log *slog.Logger, categoryService service.CategoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListCategoriesHandler"
		logger := log.With(slog.String("op", op))

		categories, err := categoryService.ListCategories(r.Context())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, categories)
	}
}

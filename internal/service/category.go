package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/ecommerce-api/internal/domain/models"
	"github.com/linemk/ecommerce-api/internal/storage"
)

type CategoryService interface {
	ListCategories(ctx context.Context) ([]*models.Category, error)
}

type categoryService struct {
	log          *slog.Logger
	categoryRepo storage.CategoryStorage
}

func NewCategoryService(log *slog.Logger, categoryRepo storage.CategoryStorage) CategoryService {
	return &categoryService{log: log, categoryRepo: categoryRepo}
}

func (s *categoryService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	const op = "service.CategoryService.ListCategories"

	categories, err := s.categoryRepo.ListCategories(ctx)
	if err != nil {
		s.log.Error("failed to list categories", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if categories == nil {
		categories = []*models.Category{}
	}
	return categories, nil
}

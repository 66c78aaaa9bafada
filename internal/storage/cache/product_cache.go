package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/linemk/ecommerce-api/internal/domain/models"
	"github.com/linemk/ecommerce-api/internal/storage"
)

const (
	notFoundMarker = "notfound"
	notFoundTTL    = time.Minute
	allProductsKey = "products:all"
)

// CachedProductRepository кэширует чтения каталога в Redis и сбрасывает кэш при записи.
// Транзакционные методы (блокировка, списание, upsert) идут в БД напрямую.
type CachedProductRepository struct {
	storage.ProductStorage
	log   *slog.Logger
	redis *redis.Client
	ttl   time.Duration
}

var _ storage.ProductStorage = (*CachedProductRepository)(nil)

func NewCachedProductRepository(log *slog.Logger, realRepo storage.ProductStorage, rdb *redis.Client, ttl time.Duration) *CachedProductRepository {
	return &CachedProductRepository{
		ProductStorage: realRepo,
		log:            log.With(slog.String("component", "cache.products")),
		redis:          rdb,
		ttl:            ttl,
	}
}

func productKey(id uuid.UUID) string {
	return fmt.Sprintf("product:%s", id)
}

func (c *CachedProductRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	key := productKey(id)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, storage.ErrProductNotFound
		}
		var product models.Product
		if err := json.Unmarshal(data, &product); err != nil {
			c.log.Warn("failed to unmarshal cached product, continuing with DB", slog.Any("error", err))
			break
		}
		return &product, nil
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("redis error, continuing with DB", slog.Any("error", err))
	}

	product, err := c.ProductStorage.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			if setErr := c.redis.Set(ctx, key, notFoundMarker, notFoundTTL).Err(); setErr != nil {
				c.log.Warn("failed to cache notfound", slog.Any("error", setErr))
			}
		}
		return nil, err
	}

	c.store(ctx, key, product)
	return product, nil
}

func (c *CachedProductRepository) ListProducts(ctx context.Context) ([]*models.Product, error) {
	data, err := c.redis.Get(ctx, allProductsKey).Bytes()
	if err == nil {
		var products []*models.Product
		if err := json.Unmarshal(data, &products); err == nil {
			return products, nil
		}
		c.log.Warn("failed to unmarshal cached products, continuing with DB", slog.Any("error", err))
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("redis error, continuing with DB", slog.Any("error", err))
	}

	products, err := c.ProductStorage.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	c.store(ctx, allProductsKey, products)
	return products, nil
}

func (c *CachedProductRepository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	created, err := c.ProductStorage.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, created.ID)
	return created, nil
}

// UpdateProductFunc читает и пишет мимо кэша: патч применяется к строке из БД под блокировкой.
func (c *CachedProductRepository) UpdateProductFunc(ctx context.Context, id uuid.UUID, apply func(*models.Product) error) (*models.Product, error) {
	product, err := c.ProductStorage.UpdateProductFunc(ctx, id, apply)
	c.invalidate(ctx, id)
	return product, err
}

func (c *CachedProductRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	err := c.ProductStorage.DeleteProduct(ctx, id)
	c.invalidate(ctx, id)
	return err
}

func (c *CachedProductRepository) store(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("failed to marshal for cache", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("failed to cache", slog.String("key", key), slog.Any("error", err))
	}
}

func (c *CachedProductRepository) invalidate(ctx context.Context, id uuid.UUID) {
	c.InvalidateProducts(ctx, id)
}

// InvalidateProducts сбрасывает записи товаров и общий список. Вызывается после коммита
// транзакций, которые меняют товары в обход декоратора (списание остатка).
func (c *CachedProductRepository) InvalidateProducts(ctx context.Context, ids ...uuid.UUID) {
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	keys = append(keys, allProductsKey)

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("failed to invalidate product cache", slog.Int("products", len(ids)), slog.Any("error", err))
	}
}

// Purge удаляет все записи каталога, например после заливки данных сидером.
func (c *CachedProductRepository) Purge(ctx context.Context) error {
	keys := []string{allProductsKey}
	iter := c.redis.Scan(ctx, 0, "product:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan product cache: %w", err)
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to purge product cache: %w", err)
	}
	return nil
}

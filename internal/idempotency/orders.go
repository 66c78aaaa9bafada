package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/linemk/ecommerce-api/internal/service"
)

// storeTimeout ограничивает запись итога в Redis после того, как контекст запроса отменён.
const storeTimeout = 2 * time.Second

// OrderService делает оформление заказа идемпотентным по ключу клиента.
// Ключ действует в пределах пользователя. Без ключа запрос уходит напрямую.
type OrderService struct {
	service.OrderService
	log   *slog.Logger
	store *Store
}

var _ service.OrderService = (*OrderService)(nil)

// storedOrder — итог оформления вместе с отпечатком запроса, под которым он получен.
type storedOrder struct {
	Fingerprint string               `json:"fingerprint"`
	Order       *service.PlacedOrder `json:"order"`
}

func NewOrderService(log *slog.Logger, next service.OrderService, store *Store) *OrderService {
	return &OrderService{OrderService: next, log: log, store: store}
}

// fingerprint зависит от порядка товаров: позиция товара в заказе значима.
func fingerprint(productIDs []string) string {
	sum := sha256.Sum256([]byte(strings.Join(productIDs, "\n")))
	return hex.EncodeToString(sum[:])
}

func (s *OrderService) PlaceOrder(ctx context.Context, userID uuid.UUID, productIDs []string) (*service.PlacedOrder, error) {
	const op = "idempotency.OrderService.PlaceOrder"

	clientKey := KeyFromContext(ctx)
	if clientKey == "" {
		return s.OrderService.PlaceOrder(ctx, userID, productIDs)
	}
	logger := s.log.With(slog.String("op", op), slog.String("idempotencyKey", clientKey))
	key := s.store.key("orders", userID.String(), clientKey)
	fp := fingerprint(productIDs)

	reserved, err := s.store.Reserve(ctx, key)
	if err != nil {
		// Redis недоступен: оформляем без защиты от повторов
		logger.Warn("idempotency store unavailable, placing without it", slog.Any("error", err))
		return s.OrderService.PlaceOrder(ctx, userID, productIDs)
	}
	if !reserved {
		return s.replay(ctx, logger, key, fp)
	}

	placed, err := s.OrderService.PlaceOrder(ctx, userID, productIDs)

	// итог фиксируется и при отменённом запросе, иначе ключ зависнет в «pending» до TTL
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	if err != nil {
		if relErr := s.store.Release(storeCtx, key); relErr != nil {
			logger.Warn("failed to release idempotency key", slog.Any("error", relErr))
		}
		return nil, err
	}

	data, err := json.Marshal(storedOrder{Fingerprint: fp, Order: placed})
	if err == nil {
		err = s.store.Complete(storeCtx, key, data)
	}
	if err != nil {
		logger.Error("failed to store idempotent result", slog.Any("error", err))
	}
	return placed, nil
}

func (s *OrderService) replay(ctx context.Context, logger *slog.Logger, key, fp string) (*service.PlacedOrder, error) {
	data, pending, err := s.store.Lookup(ctx, key)
	switch {
	case pending:
		logger.Warn("request with the same key is in progress")
		return nil, service.NewError(service.ErrConflict, "A request with this Idempotency-Key is already in progress")
	case errors.Is(err, ErrNoRecord):
		// ключ успел истечь или освободиться между SETNX и GET
		return nil, service.NewError(service.ErrConflict, "Idempotency-Key state changed, please retry")
	case err != nil:
		logger.Error("failed to read idempotent result", slog.Any("error", err))
		return nil, err
	}

	var stored storedOrder
	if err := json.Unmarshal(data, &stored); err != nil || stored.Order == nil {
		logger.Error("failed to decode idempotent result", slog.Any("error", err))
		return nil, errors.New("idempotency: malformed stored result")
	}
	if stored.Fingerprint != fp {
		logger.Warn("idempotency key reused with a different request")
		return nil, service.NewError(service.ErrInvalidArgument,
			"Idempotency-Key has already been used with a different request")
	}

	logger.Info("replaying stored order result", slog.String("orderID", stored.Order.OrderID.String()))
	return stored.Order, nil
}

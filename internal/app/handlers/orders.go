package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/linemk/ecommerce-api/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/ecommerce-api/internal/service"
)

// OrderRequest — тело POST /api/orders.
type OrderRequest struct {
	UserID   string            `json:"userId" validate:"required,uuid"`
	Products []OrderProductRef `json:"products" validate:"required,min=1,dive"`
}

type OrderProductRef struct {
	ID string `json:"id" validate:"required,uuid"`
}

// PlaceOrderHandler обрабатывает POST /api/orders.
func PlaceOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PlaceOrderHandler"
		logger := log.With(slog.String("op", op))

		var req OrderRequest
		if !decodeJSON(w, r, logger, &req) {
			return
		}
		if !validateRequest(w, logger, req) {
			return
		}

		userID := uuid.MustParse(req.UserID)
		if !authorizeUser(w, r, logger, userID) {
			return
		}

		// id уже проверены валидатором; в сервис уходит каноническая запись в нижнем регистре
		productIDs := make([]string, 0, len(req.Products))
		for _, p := range req.Products {
			productIDs = append(productIDs, uuid.MustParse(p.ID).String())
		}

		placed, err := orderService.PlaceOrder(r.Context(), userID, productIDs)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, placed)
	}
}

// GetOrderHandler обрабатывает GET /api/orders/{id}.
func GetOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		id, ok := pathUUID(w, r, logger, "id")
		if !ok {
			return
		}

		order, err := orderService.GetOrder(r.Context(), id)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		// чужой заказ видит только администратор; остальным отвечаем как на несуществующий,
		// чтобы по ответу нельзя было перебирать id заказов
		if callerID, _ := jwtmiddleware.FromContext(r.Context()); callerID != order.UserID && !jwtmiddleware.IsAdmin(r.Context()) {
			logger.Warn("access denied", slog.String("orderID", id.String()))
			writeServiceError(w, logger, service.NewError(service.ErrNotFound, "Order with id %s not found", id))
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}

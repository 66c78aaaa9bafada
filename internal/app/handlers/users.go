package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/linemk/ecommerce-api/internal/service"
)

// RegisterRequest — тело POST /api/users. Признак администратора клиент задать не может.
type RegisterRequest struct {
	Name            string `json:"name" validate:"required,max=50,alphanumspace"`
	Email           string `json:"email" validate:"required,email,max=50"`
	Password        string `json:"password" validate:"required,min=8,max=60"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,max=60"`
	Phone           int64  `json:"phone" validate:"required"`
	Country         string `json:"country" validate:"required,alphanumspace"`
	Address         string `json:"address" validate:"required,max=100"`
	City            string `json:"city" validate:"required,alphanumspace"`
}

// UserPatchRequest — тело PUT /api/users/{id}.
type UserPatchRequest struct {
	Name            *string `json:"name" validate:"omitempty,max=50,alphanumspace"`
	Email           *string `json:"email" validate:"omitempty,email,max=50"`
	Password        *string `json:"password" validate:"omitempty,min=8,max=60"`
	ConfirmPassword *string `json:"confirmPassword" validate:"omitempty,max=60"`
	Phone           *int64  `json:"phone"`
	Country         *string `json:"country" validate:"omitempty,alphanumspace"`
	Address         *string `json:"address" validate:"omitempty,max=100"`
	City            *string `json:"city" validate:"omitempty,alphanumspace"`
}

// RegisterHandler обрабатывает POST /api/users.
func RegisterHandler(log *slog.Logger, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RegisterHandler"
		logger := log.With(slog.String("op", op))

		var req RegisterRequest
		if !decodeJSON(w, r, logger, &req) {
			return
		}
		if !validateRequest(w, logger, req) {
			return
		}

		user, err := userService.Register(r.Context(), service.RegisterInput{
			Name:            req.Name,
			Email:           req.Email,
			Password:        req.Password,
			ConfirmPassword: req.ConfirmPassword,
			Phone:           req.Phone,
			Country:         req.Country,
			Address:         req.Address,
			City:            req.City,
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	}
}

// ListUsersHandler обрабатывает GET /api/users?page=&limit=.
func ListUsersHandler(log *slog.Logger, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListUsersHandler"
		logger := log.With(slog.String("op", op))

		page, err := queryInt(r, "page", service.DefaultPage)
		if err != nil {
			logger.Warn("invalid query", slog.Any("error", err))
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		limit, err := queryInt(r, "limit", service.DefaultLimit)
		if err != nil {
			logger.Warn("invalid query", slog.Any("error", err))
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		users, err := userService.ListUsers(r.Context(), page, limit)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// GetUserHandler обрабатывает GET /api/users/{id}.
func GetUserHandler(log *slog.Logger, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetUserHandler"
		logger := log.With(slog.String("op", op))

		id, ok := pathUUID(w, r, logger, "id")
		if !ok || !authorizeUser(w, r, logger, id) {
			return
		}

		user, err := userService.GetUser(r.Context(), id)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// UpdateUserHandler обрабатывает PUT /api/users/{id}.
func UpdateUserHandler(log *slog.Logger, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateUserHandler"
		logger := log.With(slog.String("op", op))

		id, ok := pathUUID(w, r, logger, "id")
		if !ok || !authorizeUser(w, r, logger, id) {
			return
		}

		var req UserPatchRequest
		if !decodeJSON(w, r, logger, &req) {
			return
		}
		if !validateRequest(w, logger, req) {
			return
		}

		user, err := userService.UpdateUser(r.Context(), id, service.UserPatch{
			Name:            req.Name,
			Email:           req.Email,
			Password:        req.Password,
			ConfirmPassword: req.ConfirmPassword,
			Phone:           req.Phone,
			Country:         req.Country,
			Address:         req.Address,
			City:            req.City,
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// DeleteUserHandler обрабатывает DELETE /api/users/{id}.
func DeleteUserHandler(log *slog.Logger, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteUserHandler"
		logger := log.With(slog.String("op", op))

		id, ok := pathUUID(w, r, logger, "id")
		if !ok || !authorizeUser(w, r, logger, id) {
			return
		}

		if err := userService.DeleteUser(r.Context(), id); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListUserOrdersHandler обрабатывает GET /api/users/{id}/orders.
func ListUserOrdersHandler(log *slog.Logger, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListUserOrdersHandler"
		logger := log.With(slog.String("op", op))

		id, ok := pathUUID(w, r, logger, "id")
		if !ok || !authorizeUser(w, r, logger, id) {
			return
		}

		orders, err := userService.ListUserOrders(r.Context(), id)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

// queryInt читает положительное целое из query; пустое значение заменяется def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

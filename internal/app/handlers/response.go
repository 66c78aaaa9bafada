package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/linemk/ecommerce-api/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/ecommerce-api/internal/service"
)

const maxBodyBytes = 1 << 20

var (
	validate          = newValidator()
	alphanumSpaceExpr = regexp.MustCompile(`^[\p{L}0-9\s]+$`)
)

// newValidator называет поля по json-тегам, чтобы сообщения совпадали с телом запроса.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// decimal проверяется как число: gt=0, required и т.п.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	// имена, страны и города без спецсимволов
	_ = v.RegisterValidation("alphanumspace", func(fl validator.FieldLevel) bool {
		return alphanumSpaceExpr.MatchString(fl.Field().String())
	})
	// встроенный uuid принимает только нижний регистр; разбор через uuid.Parse
	// совпадает с тем, что примет сервис. Допускается только каноническая запись 8-4-4-4-12.
	_ = v.RegisterValidation("uuid", func(fl validator.FieldLevel) bool {
		raw := fl.Field().String()
		_, err := uuid.Parse(raw)
		return err == nil && len(raw) == 36
	})
	return v
}

// errorResponse — единый формат ошибки API.
// Message — строка либо список строк (ошибки валидации полей).
type errorResponse struct {
	Message    any    `json:"message"`
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message any) {
	writeJSON(w, status, errorResponse{
		Message:    message,
		Error:      http.StatusText(status),
		StatusCode: status,
	})
}

// writeServiceError переводит вид ошибки сервиса в статус. Всё неклассифицированное
// отдаётся как 500 без подробностей, детали остаются в логе.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		logger.Error("internal error", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(svcErr, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(svcErr, service.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(svcErr, service.ErrConflict):
		status = http.StatusConflict
	}
	logger.Warn("request rejected", slog.Int("status", status), slog.String("reason", svcErr.Message()))
	writeError(w, status, svcErr.Message())
}

// decodeJSON читает тело запроса целиком в dst; неизвестные поля и хвост после объекта отклоняются.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		logger.Warn("invalid request: decoding error", slog.Any("error", err))
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		logger.Warn("invalid request: extra data after json")
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// validateRequest проверяет структуру целиком и возвращает все ошибки полей одним ответом.
func validateRequest(w http.ResponseWriter, logger *slog.Logger, req any) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		logger.Error("invalid request: validation error", slog.Any("error", err))
		writeError(w, http.StatusBadRequest, "Invalid request")
		return false
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldMessage(fe))
	}
	logger.Warn("invalid request: validation error", slog.Any("fields", messages))
	writeError(w, http.StatusBadRequest, messages)
	return false
}

func fieldMessage(fe validator.FieldError) string {
	// Namespace вида "orderRequest.products[0].id", имя корневой структуры отбрасываем
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s should not be empty", field)
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a UUID", field)
	case "email":
		return fmt.Sprintf("%s must be an email", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s should not be empty", field)
		}
		return fmt.Sprintf("%s must not be less than %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be shorter than or equal to %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must not be less than %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a URL address", field)
	case "alphanumspace":
		return fmt.Sprintf("%s must not contain special characters", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// pathUUID разбирает параметр пути; при ошибке сразу отвечает 400.
func pathUUID(w http.ResponseWriter, r *http.Request, logger *slog.Logger, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.Warn("invalid path parameter", slog.String(name, raw))
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation failed (uuid is expected): %s", raw))
		return uuid.Nil, false
	}
	return id, true
}

// authorizeUser пускает к данным пользователя его самого и администратора.
func authorizeUser(w http.ResponseWriter, r *http.Request, logger *slog.Logger, userID uuid.UUID) bool {
	callerID, ok := jwtmiddleware.FromContext(r.Context())
	if !ok {
		logger.Error("userID not found in context")
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}
	if callerID != userID && !jwtmiddleware.IsAdmin(r.Context()) {
		logger.Warn("access denied", slog.String("caller", callerID.String()), slog.String("userID", userID.String()))
		writeError(w, http.StatusForbidden, "You do not have permission to access this resource")
		return false
	}
	return true
}

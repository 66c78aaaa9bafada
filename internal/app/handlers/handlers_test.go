package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linemk/ecommerce-api/internal/app/handlers"
	"github.com/linemk/ecommerce-api/internal/domain/models"
	"github.com/linemk/ecommerce-api/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/ecommerce-api/internal/service"
)

// fakeOrderService — фиктивная реализация OrderService.
type fakeOrderService struct {
	placed *service.PlacedOrder
	order  *models.Order
	err    error

	calls      int
	userID     uuid.UUID
	productIDs []string
}

func (f *fakeOrderService) PlaceOrder(ctx context.Context, userID uuid.UUID, productIDs []string) (*service.PlacedOrder, error) {
	f.calls++
	f.userID = userID
	f.productIDs = productIDs
	return f.placed, f.err
}

func (f *fakeOrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	f.calls++
	return f.order, f.err
}

type errorBody struct {
	Message    json.RawMessage `json:"message"`
	Error      string          `json:"error"`
	StatusCode int             `json:"statusCode"`
}

func (b errorBody) text(t *testing.T) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(b.Message, &s))
	return s
}

func (b errorBody) list(t *testing.T) []string {
	t.Helper()
	var s []string
	require.NoError(t, json.Unmarshal(b.Message, &s))
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// caller описывает пользователя, которого в проде кладёт в контекст JWT middleware.
type caller struct {
	id    uuid.UUID
	admin bool
}

func newRequest(method, target, body string, who *caller, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	ctx := req.Context()
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	if who != nil {
		ctx = context.WithValue(ctx, jwtmiddleware.UserIDKey, who.id)
		ctx = context.WithValue(ctx, jwtmiddleware.IsAdminKey, who.admin)
	}
	return req.WithContext(ctx)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, rr.Code, body.StatusCode)
	assert.Equal(t, http.StatusText(rr.Code), body.Error)
	return body
}

func orderBody(userID uuid.UUID, productIDs ...uuid.UUID) string {
	products := make([]map[string]string, 0, len(productIDs))
	for _, id := range productIDs {
		products = append(products, map[string]string{"id": id.String()})
	}
	b, _ := json.Marshal(map[string]any{"userId": userID.String(), "products": products})
	return string(b)
}

func TestPlaceOrderHandler_Success(t *testing.T) {
	userID, p1, p2 := uuid.New(), uuid.New(), uuid.New()
	placed := &service.PlacedOrder{
		OrderID:       uuid.New(),
		OrderDate:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		TotalPrice:    decimal.RequireFromString("149.9"),
		OrderDetailID: uuid.New(),
	}
	fakeSvc := &fakeOrderService{placed: placed}
	handler := handlers.PlaceOrderHandler(discardLogger(), fakeSvc)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newRequest(http.MethodPost, "/api/orders", orderBody(userID, p1, p2, p1), &caller{id: userID}, nil))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, userID, fakeSvc.userID)
	assert.Equal(t, []string{p1.String(), p2.String(), p1.String()}, fakeSvc.productIDs, "order and duplicates must be preserved")

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, placed.OrderID.String(), resp["orderId"])
	assert.Equal(t, placed.OrderDetailID.String(), resp["orderDetailId"])
	assert.Equal(t, "149.90", resp["totalPrice"], "money keeps two decimals")
	assert.Equal(t, "2024-05-01T12:00:00Z", resp["orderDate"])
}

func TestPlaceOrderHandler_UppercaseIDs(t *testing.T) {
	userID, p1 := uuid.New(), uuid.New()
	fakeSvc := &fakeOrderService{placed: &service.PlacedOrder{OrderID: uuid.New()}}
	handler := handlers.PlaceOrderHandler(discardLogger(), fakeSvc)

	body := fmt.Sprintf(`{"userId": %q, "products": [{"id": %q}]}`,
		strings.ToUpper(userID.String()), strings.ToUpper(p1.String()))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newRequest(http.MethodPost, "/api/orders", body, &caller{id: userID}, nil))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, userID, fakeSvc.userID)
	assert.Equal(t, []string{p1.String()}, fakeSvc.productIDs)

	// фигурные скобки и запись без дефисов не принимаются
	body = fmt.Sprintf(`{"userId": %q, "products": [{"id": "{%s}"}, {"id": %q}]}`,
		userID.String(), p1.String(), strings.ReplaceAll(p1.String(), "-", ""))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, newRequest(http.MethodPost, "/api/orders", body, &caller{id: userID}, nil))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.ElementsMatch(t, []string{"products[0].id must be a UUID", "products[1].id must be a UUID"}, decodeError(t, rr).list(t))
}

func TestPlaceOrderHandler_AggregatesFieldErrors(t *testing.T) {
	fakeSvc := &fakeOrderService{}
	handler := handlers.PlaceOrderHandler(discardLogger(), fakeSvc)

	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "bad user and empty products",
			body: `{"userId": "nope", "products": []}`,
			want: []string{"userId must be a UUID", "products should not be empty"},
		},
		{
			name: "missing everything",
			body: `{}`,
			want: []string{"userId should not be empty", "products should not be empty"},
		},
		{
			name: "bad product entries",
			body: `{"userId": "` + uuid.NewString() + `", "products": [{"id": "x"}, {}]}`,
			want: []string{"products[0].id must be a UUID", "products[1].id should not be empty"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, newRequest(http.MethodPost, "/api/orders", tt.body, &caller{id: uuid.New()}, nil))

			require.Equal(t, http.StatusBadRequest, rr.Code)
			assert.ElementsMatch(t, tt.want, decodeError(t, rr).list(t))
		})
	}
	assert.Zero(t, fakeSvc.calls, "service must not be called on invalid input")
}

func TestPlaceOrderHandler_InvalidJSON(t *testing.T) {
	handler := handlers.PlaceOrderHandler(discardLogger(), &fakeOrderService{})

	for _, body := range []string{
		`{"userId": `,
		`{"userId": "` + uuid.NewString() + `", "products": [], "extra": 1}`,
		`{"products": []} {"products": []}`,
	} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, newRequest(http.MethodPost, "/api/orders", body, &caller{id: uuid.New()}, nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.Equal(t, "Invalid JSON body", decodeError(t, rr).text(t))
	}
}

func TestPlaceOrderHandler_ServiceErrors(t *testing.T) {
	productID := uuid.New()
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "not found",
			err:     service.NewError(service.ErrNotFound, "Product with id %s not found", productID),
			status:  http.StatusNotFound,
			message: "Product with id " + productID.String() + " not found",
		},
		{
			name:    "no stock",
			err:     fmt.Errorf("wrapped: %w", service.NewError(service.ErrInvalidArgument, "Product with id %s has no stock available", productID)),
			status:  http.StatusBadRequest,
			message: "Product with id " + productID.String() + " has no stock available",
		},
		{
			name:    "locked",
			err:     service.NewError(service.ErrConflict, "busy"),
			status:  http.StatusConflict,
			message: "busy",
		},
		{
			name:    "storage failure does not leak",
			err:     errors.New("pq: connection refused to 10.0.0.5"),
			status:  http.StatusInternalServerError,
			message: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID := uuid.New()
			handler := handlers.PlaceOrderHandler(discardLogger(), &fakeOrderService{err: tt.err})

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, newRequest(http.MethodPost, "/api/orders", orderBody(userID, productID), &caller{id: userID}, nil))

			require.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.message, decodeError(t, rr).text(t))
		})
	}
}

func TestPlaceOrderHandler_OnlyOwnerOrAdmin(t *testing.T) {
	owner, productID := uuid.New(), uuid.New()

	fakeSvc := &fakeOrderService{placed: &service.PlacedOrder{OrderID: uuid.New()}}
	handler := handlers.PlaceOrderHandler(discardLogger(), fakeSvc)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newRequest(http.MethodPost, "/api/orders", orderBody(owner, productID), &caller{id: uuid.New()}, nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Zero(t, fakeSvc.calls)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, newRequest(http.MethodPost, "/api/orders", orderBody(owner, productID), &caller{id: uuid.New(), admin: true}, nil))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, owner, fakeSvc.userID)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, newRequest(http.MethodPost, "/api/orders", orderBody(owner, productID), nil, nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func sampleOrder(userID uuid.UUID) *models.Order {
	return &models.Order{
		ID:     uuid.New(),
		UserID: userID,
		Date:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Lines: []*models.OrderLine{{
			ID:    uuid.New(),
			Price: decimal.RequireFromString("149.98"),
			Products: []*models.Product{
				{ID: uuid.New(), Name: "Keyboard", Price: decimal.RequireFromString("59.99")},
				{ID: uuid.New(), Name: "Mouse", Price: decimal.RequireFromString("99.99")},
			},
		}},
	}
}

func TestGetOrderHandler(t *testing.T) {
	owner := uuid.New()
	order := sampleOrder(owner)

	t.Run("owner gets nested order", func(t *testing.T) {
		handler := handlers.GetOrderHandler(discardLogger(), &fakeOrderService{order: order})

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, newRequest(http.MethodGet, "/api/orders/"+order.ID.String(), "", &caller{id: owner}, map[string]string{"id": order.ID.String()}))

		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			ID           uuid.UUID `json:"id"`
			UserID       uuid.UUID `json:"userId"`
			OrderDetails []struct {
				Price    string `json:"price"`
				Products []struct {
					ID uuid.UUID `json:"id"`
				} `json:"products"`
			} `json:"orderDetails"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, order.ID, resp.ID)
		require.Len(t, resp.OrderDetails, 1)
		assert.Equal(t, "149.98", resp.OrderDetails[0].Price, "stored snapshot price, not the product sum")
		assert.Len(t, resp.OrderDetails[0].Products, 2)
	})

	t.Run("invalid id", func(t *testing.T) {
		fakeSvc := &fakeOrderService{order: order}
		handler := handlers.GetOrderHandler(discardLogger(), fakeSvc)

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, newRequest(http.MethodGet, "/api/orders/123", "", &caller{id: owner}, map[string]string{"id": "123"}))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeError(t, rr).text(t), "uuid is expected")
		assert.Zero(t, fakeSvc.calls)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New()
		handler := handlers.GetOrderHandler(discardLogger(), &fakeOrderService{
			err: service.NewError(service.ErrNotFound, "Order with id %s not found", id),
		})

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, newRequest(http.MethodGet, "/api/orders/"+id.String(), "", &caller{id: owner}, map[string]string{"id": id.String()}))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("someone else's order looks missing", func(t *testing.T) {
		handler := handlers.GetOrderHandler(discardLogger(), &fakeOrderService{order: order})

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, newRequest(http.MethodGet, "/api/orders/"+order.ID.String(), "", &caller{id: uuid.New()}, map[string]string{"id": order.ID.String()}))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Order with id "+order.ID.String()+" not found", decodeError(t, rr).text(t),
			"same answer as for an id that does not exist")

		rr = httptest.NewRecorder()
		handler.ServeHTTP(rr, newRequest(http.MethodGet, "/api/orders/"+order.ID.String(), "", &caller{id: uuid.New(), admin: true}, map[string]string{"id": order.ID.String()}))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

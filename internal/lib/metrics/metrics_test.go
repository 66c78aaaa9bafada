package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linemk/ecommerce-api/internal/lib/metrics"
)

func TestObservePlacement(t *testing.T) {
	m := metrics.New()

	m.ObservePlacement("placed", decimal.RequireFromString("149.98"))
	m.ObservePlacement("invalid", decimal.Zero)
	m.ObservePlacement("invalid", decimal.Zero)

	expected := `
# HELP shop_orders_placed_total Order placement attempts by outcome.
# TYPE shop_orders_placed_total counter
shop_orders_placed_total{outcome="invalid"} 2
shop_orders_placed_total{outcome="placed"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "shop_orders_placed_total"))

	count, err := testutil.GatherAndCount(m.Registry(), "shop_order_total_amount")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/"+id, nil))
	}

	expected := `
# HELP shop_http_requests_total Total number of HTTP requests.
# TYPE shop_http_requests_total counter
shop_http_requests_total{method="GET",route="/api/orders/{id}",status="404"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "shop_http_requests_total"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shop_http_requests_total")
}

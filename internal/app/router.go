package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/linemk/ecommerce-api/internal/app/handlers"
	"github.com/linemk/ecommerce-api/internal/idempotency"
	"github.com/linemk/ecommerce-api/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/ecommerce-api/internal/lib/logger/handlers/urllog"
	"github.com/linemk/ecommerce-api/internal/lib/metrics"
	"github.com/linemk/ecommerce-api/internal/service"
)

// Services — сервисы, которые обслуживает HTTP API.
type Services struct {
	Orders     service.OrderService
	Products   service.ProductService
	Categories service.CategoryService
	Users      service.UserService
}

// NewRouter собирает маршруты API. Проверка JWT стоит на всех маршрутах, кроме
// каталога, регистрации и служебных.
func NewRouter(log *slog.Logger, jwtSecret string, svc Services, m *metrics.Metrics) http.Handler {
	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(m.Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", m.Handler())

	// публичные эндпоинты
	router.Get("/api/categories", handlers.ListCategoriesHandler(log, svc.Categories))
	router.Get("/api/products", handlers.ListProductsHandler(log, svc.Products))
	router.Post("/api/users", handlers.RegisterHandler(log, svc.Users))

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware(jwtSecret))

		r.Get("/api/products/{id}", handlers.GetProductHandler(log, svc.Products))
		r.Put("/api/products/{id}", handlers.UpdateProductHandler(log, svc.Products))
		r.Delete("/api/products/{id}", handlers.DeleteProductHandler(log, svc.Products))
		r.Post("/api/products", handlers.CreateProductHandler(log, svc.Products))

		r.With(jwtmiddleware.RequireAdmin).Get("/api/users", handlers.ListUsersHandler(log, svc.Users))
		r.Get("/api/users/{id}", handlers.GetUserHandler(log, svc.Users))
		r.Put("/api/users/{id}", handlers.UpdateUserHandler(log, svc.Users))
		r.Delete("/api/users/{id}", handlers.DeleteUserHandler(log, svc.Users))
		r.Get("/api/users/{id}/orders", handlers.ListUserOrdersHandler(log, svc.Users))

		// эндпоинты заказов; Idempotency-Key учитывается, только если подключён Redis
		r.With(idempotency.Middleware).Post("/api/orders", handlers.PlaceOrderHandler(log, svc.Orders))
		r.Get("/api/orders/{id}", handlers.GetOrderHandler(log, svc.Orders))
	})

	return router
}

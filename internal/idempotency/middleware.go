package idempotency

import (
	"context"
	"net/http"
	"strings"
)

const HeaderKey = "Idempotency-Key"

type ctxKey struct{}

// Middleware переносит заголовок Idempotency-Key в контекст запроса.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := strings.TrimSpace(r.Header.Get(HeaderKey)); key != "" {
			r = r.WithContext(WithKey(r.Context(), key))
		}
		next.ServeHTTP(w, r)
	})
}

func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKey{}, key)
}

// KeyFromContext возвращает ключ идемпотентности или пустую строку.
func KeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(ctxKey{}).(string)
	return key
}

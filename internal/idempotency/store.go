package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// ErrNoRecord — по ключу ничего не сохранено (или запись истекла).
var ErrNoRecord = errors.New("idempotency record not found")

// Store хранит состояние запросов по ключу идемпотентности: «pending» пока запрос
// выполняется, затем сериализованный результат.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(parts ...string) string {
	var builder strings.Builder
	builder.WriteString(s.prefix)
	for _, p := range parts {
		builder.WriteString(":")
		builder.WriteString(p)
	}
	return builder.String()
}

// Reserve занимает ключ. false — ключ уже занят другим запросом или его результатом.
func (s *Store) Reserve(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, key, pendingMarker, s.ttl).Result()
}

// Lookup возвращает сохранённый результат. pending=true — первый запрос ещё выполняется.
func (s *Store) Lookup(ctx context.Context, key string) (data []byte, pending bool, err error) {
	data, err = s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, ErrNoRecord
		}
		return nil, false, err
	}
	if string(data) == pendingMarker {
		return nil, true, nil
	}
	return data, false, nil
}

// Complete сохраняет результат с тем же TTL.
func (s *Store) Complete(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

// Release освобождает ключ после неуспешного запроса, чтобы клиент мог повторить.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore is a KeyedStore that keeps JSON values under prefix:key.
type RedisStore[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed store. A zero ttl keeps keys forever.
func NewRedisStore[T any](client *redis.Client, prefix string, ttl time.Duration) *RedisStore[T] {
	if client == nil {
		panic("store: redis client cannot be nil")
	}
	return &RedisStore[T]{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		tracer: otel.Tracer("assistant.internal.store"),
	}
}

func (s *RedisStore[T]) Get(ctx context.Context, key string) (T, bool, error) {
	ctx, span := s.tracer.Start(ctx, "store.get", trace.WithAttributes(attribute.String("store.prefix", s.prefix)))
	defer span.End()

	var value T
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return value, false, nil
		}
		span.RecordError(err)
		return value, false, fmt.Errorf("store: failed to load %s: %w", s.prefix, err)
	}
	if err := json.Unmarshal(data, &value); err != nil {
		span.RecordError(err)
		return value, false, fmt.Errorf("store: failed to decode %s: %w", s.prefix, err)
	}
	return value, true, nil
}

func (s *RedisStore[T]) Set(ctx context.Context, key string, value T) error {
	ctx, span := s.tracer.Start(ctx, "store.set", trace.WithAttributes(attribute.String("store.prefix", s.prefix)))
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: failed to marshal %s: %w", s.prefix, err)
	}
	if err := s.client.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: failed to persist %s: %w", s.prefix, err)
	}
	return nil
}

func (s *RedisStore[T]) Delete(ctx context.Context, key string) error {
	ctx, span := s.tracer.Start(ctx, "store.delete", trace.WithAttributes(attribute.String("store.prefix", s.prefix)))
	defer span.End()

	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: failed to delete %s: %w", s.prefix, err)
	}
	return nil
}

func (s *RedisStore[T]) key(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

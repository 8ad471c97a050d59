package repositories

import (
	"context"
	"time"
)

type CacheRepositoryInterface interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error

	// Очередь фоновых заданий.
	PushJob(ctx context.Context, queue string, payload string) error
	PopJob(ctx context.Context, queue string, timeout time.Duration) (string, error)
}

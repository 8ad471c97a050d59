package repositories

import (
	"context"
	"errors"
	"time"

	apperrors "renamewiki-system/pkg/errors"

	"github.com/go-redis/redis/v8"
)

// RedisCacheRepository - реализация кеша и очереди заданий на Redis.
type RedisCacheRepository struct {
	client *redis.Client
}

func NewRedisCacheRepository(client *redis.Client) CacheRepositoryInterface {
	return &RedisCacheRepository{client: client}
}

func (r *RedisCacheRepository) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperrors.ErrNotFound
	}
	return value, err
}

func (r *RedisCacheRepository) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisCacheRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisCacheRepository) PushJob(ctx context.Context, queue string, payload string) error {
	return r.client.LPush(ctx, queue, payload).Err()
}

// PopJob блокируется до появления задания либо до истечения timeout.
// При пустой очереди возвращает ErrNotFound.
func (r *RedisCacheRepository) PopJob(ctx context.Context, queue string, timeout time.Duration) (string, error) {
	values, err := r.client.BRPop(ctx, timeout, queue).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if len(values) < 2 {
		return "", apperrors.ErrNotFound
	}
	return values[1], nil
}

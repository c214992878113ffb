// Registry store driver backed by Redis
package redisregistrystore

import (
	"context"
	"fmt"
	"log"

	"github.com/function61/exohost/pkg/registrystore"
	"github.com/function61/gokit/logex"
	"github.com/redis/go-redis/v9"
)

func New(addr string, password string, db int, logger *log.Logger) *redisStore {
	return &redisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		logl: logex.Levels(logex.NonNil(logger)),
	}
}

type redisStore struct {
	client *redis.Client
	logl   *logex.Leveled
}

func (r *redisStore) HGet(ctx context.Context, key string, field string) (string, error) {
	val, err := r.client.HGet(ctx, key, field).Result()
	if err != nil {
		if err == redis.Nil {
			return "", registrystore.ErrFieldNotFound
		}

		return "", fmt.Errorf("redis HGET: %v", err)
	}

	return val, nil
}

func (r *redisStore) HSet(ctx context.Context, key string, field string, value string) error {
	if err := r.client.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("redis HSET: %v", err)
	}

	return nil
}

func (r *redisStore) HSetNX(ctx context.Context, key string, field string, value string) (bool, error) {
	wrote, err := r.client.HSetNX(ctx, key, field, value).Result()
	if err != nil {
		return false, fmt.Errorf("redis HSETNX: %v", err)
	}

	return wrote, nil
}

func (r *redisStore) HExists(ctx context.Context, key string, field string) (bool, error) {
	exists, err := r.client.HExists(ctx, key, field).Result()
	if err != nil {
		return false, fmt.Errorf("redis HEXISTS: %v", err)
	}

	return exists, nil
}

func (r *redisStore) HIncrBy(ctx context.Context, key string, field string, delta int64) (int64, error) {
	val, err := r.client.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("redis HINCRBY: %v", err)
	}

	return val, nil
}

// reachability check for startup, so a misconfigured store address fails fast
// instead of on the first request
func (r *redisStore) Reachable(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis PING: %v", err)
	}

	r.logl.Debug.Println("store reachable")

	return nil
}

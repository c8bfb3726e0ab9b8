package rdx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var Conn *redis.Client

// Connect opens the shared Redis client and checks it answers.
func Connect(ctx context.Context, addr string) error {
	c := redis.NewClient(&redis.Options{Addr: addr})
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	Conn = c
	return nil
}

func Close() error {
	if Conn == nil {
		return nil
	}
	return Conn.Close()
}

func RdxSet(ctx context.Context, key, value string, ttl time.Duration) error {
	return Conn.Set(ctx, key, value, ttl).Err()
}

// RdxGet returns the value and false when the key does not exist.
func RdxGet(ctx context.Context, key string) (string, bool, error) {
	v, err := Conn.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func RdxDel(ctx context.Context, keys ...string) error {
	return Conn.Del(ctx, keys...).Err()
}

// Cache adapts the shared client to the small get/set/del surface the
// read-through caches use.
type Cache struct{}

func (Cache) Get(ctx context.Context, key string) (string, bool, error) {
	return RdxGet(ctx, key)
}

func (Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return RdxSet(ctx, key, value, ttl)
}

func (Cache) Del(ctx context.Context, keys ...string) error {
	return RdxDel(ctx, keys...)
}

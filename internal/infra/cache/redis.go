package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-timeline/internal/domain"
	"chat-timeline/internal/infra/metrics"
)

// RedisSections реализует domain.SectionCache через Redis.
type RedisSections struct {
	client *redis.Client
	prefix string
}

// NewRedis создаёт кэш секций. Все ключи получают указанный префикс.
func NewRedis(client *redis.Client, prefix string) *RedisSections {
	return &RedisSections{client: client, prefix: prefix}
}

// Get возвращает значение или domain.ErrCacheMiss.
func (c *RedisSections) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "get", "sections", start, nil)
		return nil, domain.ErrCacheMiss
	}
	metrics.ObserveNetworkRequest("redis", "get", "sections", start, err)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set задаёт значение.
func (c *RedisSections) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	metrics.ObserveNetworkRequest("redis", "set", "sections", start, err)
	return err
}

// Delete удаляет ключи. Отсутствующие ключи не считаются ошибкой.
func (c *RedisSections) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, c.prefix+k)
	}
	start := time.Now()
	err := c.client.Del(ctx, full...).Err()
	metrics.ObserveNetworkRequest("redis", "del", "sections", start, err)
	return err
}

// Incr увеличивает счётчик. Ключ хранится без TTL.
func (c *RedisSections) Incr(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	n, err := c.client.Incr(ctx, c.prefix+key).Result()
	metrics.ObserveNetworkRequest("redis", "incr", "sections", start, err)
	return n, err
}

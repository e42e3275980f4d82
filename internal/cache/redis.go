package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// incr only touches existing keys so missing-key semantics match MemoryCache.
const incrIfExistsScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return redis.call("INCRBY", KEYS[1], ARGV[1])
end
return false
`

// RedisCache is the shared UsageCache backend for multi-node deployments.
type RedisCache struct {
	client *redis.Client
	incr   *redis.Script
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
		incr:   redis.NewScript(incrIfExistsScript),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (int64, bool, error) {
	value, err := c.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Incr(ctx context.Context, key string, delta int64) error {
	err := c.incr.Run(ctx, c.client, []string{key}, delta).Err()
	if err == redis.Nil {
		// key absent, nothing to increment
		return nil
	}
	return err
}

func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, usageKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

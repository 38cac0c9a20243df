package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisKeyPrefix = "coupon:discount:"

// RedisCache shares discount id lookups between service instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, discountID string) (string, bool) {
	code, err := c.client.Get(ctx, redisKeyPrefix+discountID).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).Warn("cache: redis get failed")
		}
		return "", false
	}
	return code, true
}

func (c *RedisCache) Set(ctx context.Context, discountID, code string) {
	if discountID == "" || code == "" {
		return
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, redisKeyPrefix+discountID, code, ttl).Err(); err != nil {
		log.WithError(err).Warn("cache: redis set failed")
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

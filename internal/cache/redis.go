// Package cache holds the Redis-backed caches.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings. An empty URL disables caching.
type Config struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Connect initializes a Redis client from URL or host:port input.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// HeadingCache caches landing-page headings by URL.
type HeadingCache struct {
	client *redis.Client
	prefix string
}

// NewHeadingCache creates a heading cache on client.
func NewHeadingCache(client *redis.Client, prefix string) *HeadingCache {
	if prefix == "" {
		prefix = "landing:h1:"
	}
	return &HeadingCache{client: client, prefix: prefix}
}

func (c *HeadingCache) Get(ctx context.Context, url string) (string, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+url).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *HeadingCache) Set(ctx context.Context, url, heading string, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+url, heading, ttl).Err()
}

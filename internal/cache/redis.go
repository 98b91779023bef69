// Package cache provides the redis backend for topic classifications.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/trendpersona/internal/types"
)

const keyPrefix = "trendpersona:topic:"

// Redis stores topic classifications as plain keys with a TTL, so expiry is
// handled by redis itself.
type Redis struct {
	client goredis.UniversalClient
	log    *logrus.Entry
}

// NewRedis wraps an existing client
func NewRedis(client goredis.UniversalClient, logger *logrus.Logger) *Redis {
	return &Redis{client: client, log: logger.WithField("component", "topic_cache")}
}

// Dial connects to redisURL and pings it
func Dial(ctx context.Context, redisURL string, logger *logrus.Logger) (*Redis, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 5 * time.Second
	opts.WriteTimeout = 5 * time.Second

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedis(client, logger), nil
}

// Get returns the cached category for topic
func (r *Redis) Get(ctx context.Context, topic string) (types.Category, bool, error) {
	val, err := r.client.Get(ctx, keyPrefix+topic).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read topic cache: %w", err)
	}

	category, ok := types.ParseCategory(val)
	if !ok {
		r.log.WithField("topic", topic).Warn("Dropping invalid cache entry")
		_ = r.client.Del(ctx, keyPrefix+topic).Err()
		return "", false, nil
	}
	return category, true, nil
}

// Set caches category for ttl
func (r *Redis) Set(ctx context.Context, topic string, category types.Category, ttl time.Duration) error {
	if err := r.client.Set(ctx, keyPrefix+topic, string(category), ttl).Err(); err != nil {
		return fmt.Errorf("failed to write topic cache: %w", err)
	}
	return nil
}

// Ping checks the connection
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client
func (r *Redis) Close() error {
	return r.client.Close()
}

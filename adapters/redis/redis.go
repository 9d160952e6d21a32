// Package redis provides Redis implementations of storage ports, for
// deployments running more than one gateway instance. Atomicity comes
// from Redis itself (WATCH/MULTI for check-and-increment, MULTI for
// usage merges), never from in-process locks.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Connect creates a Redis client and verifies the connection.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

func usageKey(userID, date string) string {
	return "usage:" + userID + ":" + date
}

func usageIndexKey(userID string) string {
	return "usagedays:" + userID
}

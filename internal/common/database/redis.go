// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"dealflow-workers/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient owns the cache connection. The raw Client stays exported
// because cache consumers branch on typed results such as redis.Nil.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis builds a client with short IO timeouts. A stalled cache then
// surfaces as an error the scoring path treats as a miss, instead of
// holding up job handlers.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &RedisClient{Client: rdb}, nil
}

// Ping verifies the server answers.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// GetClient exposes the raw client.
func (c *RedisClient) GetClient() *redis.Client {
	return c.Client
}

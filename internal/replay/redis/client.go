package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Client defines the Redis operations the store needs.
type Client interface {
	// RPush appends values to a list
	RPush(ctx context.Context, key string, values ...interface{}) error
	// LTrim trims a list to the given range
	LTrim(ctx context.Context, key string, start, stop int64) error
	// LRange returns list elements in the given range
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// Close closes the connection
	Close() error
}

// ClientAdapter adapts a go-redis client to our interface
type ClientAdapter struct {
	client redis.UniversalClient
}

// NewClientAdapter creates a new client adapter
func NewClientAdapter(client redis.UniversalClient) *ClientAdapter {
	return &ClientAdapter{client: client}
}

// RPush appends values to a list
func (c *ClientAdapter) RPush(ctx context.Context, key string, values ...interface{}) error {
	return c.client.RPush(ctx, key, values...).Err()
}

// LTrim trims a list to the given range
func (c *ClientAdapter) LTrim(ctx context.Context, key string, start, stop int64) error {
	return c.client.LTrim(ctx, key, start, stop).Err()
}

// LRange returns list elements in the given range
func (c *ClientAdapter) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.client.LRange(ctx, key, start, stop).Result()
}

// Close closes the connection
func (c *ClientAdapter) Close() error {
	return c.client.Close()
}

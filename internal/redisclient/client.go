package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetUnitPrice caches a unit's published price snapshot.
func (c *Client) SetUnitPrice(ctx context.Context, unitID, price int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("price:unit:%d", unitID), price, ttl).Err()
}

// GetUnitPrice returns the cached price for a unit. The second return
// value is false on a cache miss.
func (c *Client) GetUnitPrice(ctx context.Context, unitID int64) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf("price:unit:%d", unitID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	price, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt cached price for unit %d: %w", unitID, err)
	}
	return price, true, nil
}

// InvalidateUnitPrice drops a unit's cached price.
func (c *Client) InvalidateUnitPrice(ctx context.Context, unitID int64) error {
	return c.rdb.Del(ctx, fmt.Sprintf("price:unit:%d", unitID)).Err()
}

// AcquireSweepLease takes the sweeper leader lease so that at most one
// replica runs a sweep cycle at a time. Returns false when another
// replica holds it.
func (c *Client) AcquireSweepLease(ctx context.Context, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, "lease:sweeper", "1", ttl).Result()
}

// ReleaseSweepLease releases the sweeper leader lease.
func (c *Client) ReleaseSweepLease(ctx context.Context) error {
	return c.rdb.Del(ctx, "lease:sweeper").Err()
}

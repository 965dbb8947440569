// Package cache provides an optional redis-backed read cache for tariff
// rows. The database stays the source of truth; when no redis address is
// configured every lookup is a miss and billing works unchanged.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// Client is a thin byte-payload cache over redis.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to redis and validates the connection with PING.
func New(addr, password string, ttl time.Duration) (*Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("cache: addr is empty")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

// Get returns the cached payload for key, or ok=false on a miss or any
// redis error. Cache failures never fail a read path.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores a payload under key with the configured TTL, best effort.
func (c *Client) Set(ctx context.Context, key string, payload []byte) {
	if c == nil {
		return
	}
	_ = c.rdb.Set(ctx, key, payload, c.ttl).Err()
}

// Invalidate drops a key, best effort.
func (c *Client) Invalidate(ctx context.Context, key string) {
	if c == nil {
		return
	}
	_ = c.rdb.Del(ctx, key).Err()
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

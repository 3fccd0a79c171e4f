package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPollInterval = 50 * time.Millisecond

// ErrLockTimeout is returned when a lock could not be acquired before the
// context ended.
var ErrLockTimeout = errors.New("redis lock: timed out waiting for lock")

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client wraps go-redis for the application.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// Connect creates a Redis client and verifies connectivity.
func Connect(url, prefix string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(rdb, prefix), nil
}

// New wraps an existing go-redis client.
func New(rdb *redis.Client, prefix string) *Client {
	return &Client{rdb: rdb, prefix: prefix}
}

// Raw returns the underlying redis.Client for advanced usage.
func (c *Client) Raw() *redis.Client { return c.rdb }

// Key prefixes name with the client's namespace.
func (c *Client) Key(name string) string { return c.prefix + name }

// Close releases the connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

// Lock acquires a short-lived mutex on key using SET NX PX, polling until the
// context ends. The returned func releases the lock if it is still ours.
func (c *Client) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	full := c.Key("lock:" + key)
	token := uuid.NewString()

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		ok, err := c.rdb.SetNX(ctx, full, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %q: %w", key, err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, c.rdb, []string{full}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Incr increments a fixed-window counter and sets its expiry on first use.
func (c *Client) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	full := c.Key(key)
	count, err := c.rdb.Incr(ctx, full).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		c.rdb.PExpire(ctx, full, window+time.Second)
	}
	return count, nil
}

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dialTimeout = 5 * time.Second

// OpenRedis connects and pings; the caller owns Close.
func OpenRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{
		Addr:        addr,
		DB:          db,
		DialTimeout: dialTimeout,
	})
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return r, nil
}

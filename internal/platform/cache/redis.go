// Package cache owns the Redis connection settings shared by the session
// store and the audit queue.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Options returns the go-redis settings used for sessions.
func Options(addr string) *redis.Options {
	return &redis.Options{Addr: addr}
}

// QueueOptions returns the asynq connection for the same Redis instance.
func QueueOptions(addr string) asynq.RedisClientOpt {
	opts := Options(addr)
	return asynq.RedisClientOpt{Addr: opts.Addr, DB: opts.DB}
}

// New connects the session client and fails fast when Redis is unreachable.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(Options(addr))

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", addr, err)
	}
	return client, nil
}

package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// PingRedis verifies the Redis instance backing the task queue is reachable
// before the process starts enqueueing or consuming.
func PingRedis(ctx context.Context, redisURL string) error {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	defer func() {
		_ = client.Close()
	}()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	return nil
}

package cache

import (
	"context"
	"fmt"
	"time"

	"estatelink/marketplace/internal/logging"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis initializes and returns a Redis client instance.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetLogger().WithField("addr", addr).Info("connected to Redis")
	return rdb, nil
}

// DisconnectRedis closes the Redis client connection.
func DisconnectRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	logging.GetLogger().Info("Redis connection closed")
	return nil
}

package db

import (
	"context"
	"fmt"
	"time"

	"gpxvault/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the global Redis client, shared by the job queue, the
// geocode cache and processing status tracking.
var RedisClient *redis.Client

// ConnectRedis initializes the Redis connection.
func ConnectRedis(cfg *config.Config) error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// CloseRedis closes the Redis connection.
func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}

// TestRedis performs a basic round trip used by the redis subcommand.
func TestRedis() error {
	if RedisClient == nil {
		return fmt.Errorf("redis client not initialized")
	}

	ctx := context.Background()

	if err := RedisClient.Set(ctx, "gpxvault:test", "ok", time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to set test key: %w", err)
	}
	val, err := RedisClient.Get(ctx, "gpxvault:test").Result()
	if err != nil {
		return fmt.Errorf("failed to get test key: %w", err)
	}
	if val != "ok" {
		return fmt.Errorf("unexpected value from Redis: %s", val)
	}
	if err := RedisClient.Del(ctx, "gpxvault:test").Err(); err != nil {
		return fmt.Errorf("failed to delete test key: %w", err)
	}
	return nil
}

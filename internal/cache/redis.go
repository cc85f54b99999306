package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

var Client *redis.Client

// InitRedis initializes Redis connection
func InitRedis(addr, password string, db int) error {
	Client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("✓ Redis connected successfully")
	return nil
}

// Close closes the Redis connection
func Close() error {
	if Client != nil {
		return Client.Close()
	}
	return nil
}

// Dedup is a Redis-backed once-only marker, used by the webhook
// reconciler to drop replayed billing events.
type Dedup struct {
	C *redis.Client
}

// MarkOnce records key and returns true exactly once per TTL window.
// A second call with the same key returns false.
func (d *Dedup) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.C.SetNX(ctx, key, 1, ttl).Result()
}

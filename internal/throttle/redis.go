package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/s-uryansh/convoo/internal/config"
)

// RedisStore implements Store with Redis TTL keys, for deployments that run
// more than one coordinator instance behind a balancer. SET NX PX is both the
// check and the arm, so concurrent attempts for the same pair race safely.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	cooldown time.Duration
}

// NewRedisStore connects to Redis and returns a RedisStore.
func NewRedisStore(cfg config.RedisConfig, cooldown time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.ThrottlePrefix
	if prefix == "" {
		prefix = "convoo:throttle"
	}

	return &RedisStore{
		client:   client,
		prefix:   prefix,
		cooldown: cooldown,
	}, nil
}

func (s *RedisStore) key(roomID, username string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, roomID, username)
}

// Attempt arms the cooldown key if absent and reports whether it was armed.
func (s *RedisStore) Attempt(ctx context.Context, roomID, username string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(roomID, username), 1, s.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("throttle setnx: %w", err)
	}
	return ok, nil
}

// Close releases the Redis connection. Armed keys expire on their own.
func (s *RedisStore) Close() {
	s.client.Close()
}

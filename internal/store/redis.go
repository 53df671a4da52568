package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the production Store. Keys are namespaced by a prefix so several
// environments can share one instance.
type Redis struct {
	rc     redis.UniversalClient
	prefix string
}

func NewRedis(rc redis.UniversalClient, prefix string) *Redis {
	return &Redis{rc: rc, prefix: prefix}
}

func (s *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rc.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: get %s: %w", key, err)
	}

	return v, nil
}

func (s *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rc.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}

	return nil
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	if err := s.rc.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}

	return nil
}

func (s *Redis) key(key string) string {
	if s.prefix == "" {
		return key
	}

	return s.prefix + ":" + key
}

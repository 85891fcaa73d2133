// Package redisstore backs the soft delete secondary storage and the restore
// rate limiter with Redis.
package redisstore

import (
	"context"
	"errors"
	"time"

	softdelete "github.com/goliatone/go-auth-softdelete"
	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// Storage implements softdelete.SecondaryStorage on a Redis client.
type Storage struct {
	client redis.UniversalClient
	prefix string
}

// NewStorage builds a Storage. Keys are namespaced with prefix when set.
func NewStorage(client redis.UniversalClient, prefix string) *Storage {
	return &Storage{client: client, prefix: prefix}
}

// Get returns the stored value. A missing key is a miss, not an error.
func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerrors.Wrap(err, goerrors.CategoryExternal, "redis get").
			WithMetadata(map[string]any{"key": key})
	}
	return value, true, nil
}

// Set stores value. A non-positive ttl stores the key without expiry.
func (s *Storage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "redis set").
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}

// Delete removes key. Deleting a missing key succeeds.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "redis del").
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}

func (s *Storage) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

var _ softdelete.SecondaryStorage = (*Storage)(nil)

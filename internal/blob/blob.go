// Package blob moves large tool outputs between workflow activities by
// reference, using redis as the backing store.
package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a hand-off blob survives. Activities that crash
// before deleting their inputs do not leak storage forever.
const DefaultTTL = 24 * time.Hour

// Store is a redis-backed blob store.
type Store struct {
	c   *redis.Client
	ttl time.Duration
}

// New returns a Store over the given connection.
func New(addr, username, password string) *Store {
	return &Store{
		c: redis.NewClient(&redis.Options{
			Addr:     addr,
			Username: username,
			Password: password,
		}),
		ttl: DefaultTTL,
	}
}

// Put stores data under a fresh "{prefix}-{uuid}" key and returns the key.
func (s *Store) Put(ctx context.Context, prefix string, data []byte) (string, error) {
	key := fmt.Sprintf("%s-%s", prefix, uuid.New())
	if err := s.c.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("blob: put %q: %w", key, err)
	}
	return key, nil
}

// Get retrieves the blob stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.c.Get(ctx, key).Bytes()
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("blob: %q: not found", key)
	default:
		return nil, fmt.Errorf("blob: get %q: %w", key, err)
	}
	return b, nil
}

// Delete removes the blob stored under key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.c.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("blob: delete %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.c.Close()
}

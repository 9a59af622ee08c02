package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "speaksmart:session:"

// RedisStore is a [Store] that keeps modes in Redis, so they survive a
// restart and can be shared by several bot processes.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// RedisOption configures a [RedisStore].
type RedisOption func(*RedisStore)

// WithTTL expires a stored mode after d without updates. Zero keeps modes
// forever.
func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = d }
}

// WithKeyPrefix overrides the key prefix "speaksmart:session:".
func WithKeyPrefix(p string) RedisOption {
	return func(s *RedisStore) { s.prefix = p }
}

// NewRedisStore wraps an existing client. The caller owns the client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultKeyPrefix}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *RedisStore) key(userID int64) string {
	return s.prefix + strconv.FormatInt(userID, 10)
}

// Get implements [Store].
func (s *RedisStore) Get(ctx context.Context, userID int64) (Mode, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Idle{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get %d: %w", userID, err)
	}
	return Unmarshal(data)
}

// Set implements [Store].
func (s *RedisStore) Set(ctx context.Context, userID int64, m Mode) error {
	if IsIdle(m) {
		if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
			return fmt.Errorf("session: redis del %d: %w", userID, err)
		}
		return nil
	}
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set %d: %w", userID, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("session: redis ping: %w", err)
	}
	return nil
}

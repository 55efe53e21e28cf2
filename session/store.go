package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when the requested value does not exist or
	// has expired.
	ErrNotFound = errors.New("session value not found")
	// ErrRedisUnavailable wraps backend failures.
	ErrRedisUnavailable = errors.New("session redis unavailable")
)

// Store persists per-session string values in Redis. Every session value
// shares the session lifetime; an abandoned session simply expires with
// all of its values and the field index.
type Store struct {
	redis    redis.UniversalClient
	prefix   string
	lifetime time.Duration
}

// NewStore creates a session store using the given key prefix and value
// lifetime.
func NewStore(redisClient redis.UniversalClient, prefix string, lifetime time.Duration) *Store {
	return &Store{
		redis:    redisClient,
		prefix:   prefix,
		lifetime: lifetime,
	}
}

func (s *Store) key(sessionID, field string) string {
	return s.prefix + ":sess:" + sessionID + ":" + field
}

func (s *Store) indexKey(sessionID string) string {
	return s.prefix + ":sess:" + sessionID + ":__fields"
}

// Put stores a value under the session. A custom ttl overrides the store
// lifetime when positive; the field index always keeps the full session
// lifetime so Flush can find short-lived values that already expired.
func (s *Store) Put(ctx context.Context, sessionID, field, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.lifetime
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.key(sessionID, field), value, ttl)
	pipe.SAdd(ctx, s.indexKey(sessionID), field)
	pipe.Expire(ctx, s.indexKey(sessionID), s.lifetime)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get reads a value without consuming it.
func (s *Store) Get(ctx context.Context, sessionID, field string) (string, error) {
	value, err := s.redis.Get(ctx, s.key(sessionID, field)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return value, nil
}

// Pull reads and deletes a value in one round trip. The deletion is
// atomic with the read: a concurrent Pull for the same field observes
// ErrNotFound.
func (s *Store) Pull(ctx context.Context, sessionID, field string) (string, error) {
	value, err := s.redis.GetDel(ctx, s.key(sessionID, field)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	_ = s.redis.SRem(ctx, s.indexKey(sessionID), field).Err()
	return value, nil
}

// Delete removes a single value. Missing values are not an error.
func (s *Store) Delete(ctx context.Context, sessionID, field string) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.key(sessionID, field))
	pipe.SRem(ctx, s.indexKey(sessionID), field)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Flush removes every value stored under the session, including the
// field index. Idempotent.
func (s *Store) Flush(ctx context.Context, sessionID string) error {
	fields, err := s.redis.SMembers(ctx, s.indexKey(sessionID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(fields)+1)
	for _, field := range fields {
		keys = append(keys, s.key(sessionID, field))
	}
	keys = append(keys, s.indexKey(sessionID))

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

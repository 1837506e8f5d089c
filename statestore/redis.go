package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

// RedisStore is a Redis-backed Store for distributed deployments. State
// is stored as JSON with TTL-based cleanup.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the time-to-live for call states. Expired calls are
// deleted by Redis. Default is 24 hours; zero disables expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "callbridge".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed state store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(12 * time.Hour),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    defaultTTL,
		prefix: "callbridge",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Load retrieves call state by call SID.
func (s *RedisStore) Load(ctx context.Context, callSID string) (*CallState, error) {
	if callSID == "" {
		return nil, ErrInvalidID
	}

	data, err := s.client.Get(ctx, s.callKey(callSID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var state CallState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// Save persists call state with TTL.
func (s *RedisStore) Save(ctx context.Context, state *CallState) error {
	if state == nil {
		return ErrInvalidState
	}
	if state.CallSID == "" {
		return ErrInvalidID
	}

	state.UpdatedAt = time.Now()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.client.Set(ctx, s.callKey(state.CallSID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes call state.
func (s *RedisStore) Delete(ctx context.Context, callSID string) error {
	if callSID == "" {
		return ErrInvalidID
	}

	deleted, err := s.client.Del(ctx, s.callKey(callSID)).Result()
	if err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) callKey(callSID string) string {
	return fmt.Sprintf("%s:call:%s", s.prefix, callSID)
}

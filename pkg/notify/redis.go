package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces the list keys. Defaults to "multiform:messages:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithQueueTTL expires idle queues. Defaults to 24 hours; zero disables it.
func WithQueueTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// RedisStore keeps one list of JSON-encoded messages per handle so every
// server instance sees the same queue.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps a go-redis client.
func NewRedisStore(client redis.Cmdable, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: "multiform:messages:",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) key(handle string) string {
	return s.prefix + handle
}

// Add pushes msg onto the handle's list and refreshes its expiry.
func (s *RedisStore) Add(ctx context.Context, handle string, msg Message) error {
	if handle == "" {
		return ErrNoHandle
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode message: %w", err)
	}

	key := s.key(handle)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("notify: push message: %w", err)
	}
	return nil
}

// Pop reads and deletes the handle's list atomically.
func (s *RedisStore) Pop(ctx context.Context, handle string) ([]Message, error) {
	if handle == "" {
		return nil, nil
	}
	key := s.key(handle)

	var rng *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rng = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("notify: pop messages: %w", err)
	}

	raw := rng.Val()
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("notify: decode message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

package notify

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps pending messages in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds a store whose queues expire after ttl of inactivity.
// A zero ttl keeps queues until popped.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	cleanup := time.Duration(0)
	if ttl > 0 {
		cleanup = ttl
	}
	return &MemoryStore{
		cache: cache.New(ttl, cleanup),
		ttl:   ttl,
	}
}

// Add appends msg to the handle's queue.
func (s *MemoryStore) Add(_ context.Context, handle string, msg Message) error {
	if handle == "" {
		return ErrNoHandle
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var queue []Message
	if existing, ok := s.cache.Get(handle); ok {
		queue = existing.([]Message)
	}
	queue = append(queue, msg)
	s.cache.Set(handle, queue, s.ttl)
	return nil
}

// Pop drains the handle's queue.
func (s *MemoryStore) Pop(_ context.Context, handle string) ([]Message, error) {
	if handle == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.cache.Get(handle)
	if !ok {
		return nil, nil
	}
	s.cache.Delete(handle)
	return existing.([]Message), nil
}

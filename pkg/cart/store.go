package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/switchkit/pkg/redis"
)

// Store persists carts between requests of one shopping session.
type Store interface {
	// Get returns ErrCartNotFound when the cart does not exist or has expired.
	Get(ctx context.Context, id uuid.UUID) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, id uuid.UUID) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// MemoryStore keeps carts in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[uuid.UUID]*Cart
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[uuid.UUID]*Cart)}
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.carts[id]
	if !ok {
		return nil, ErrCartNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, c *Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[c.ID] = c.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, id)
	return nil
}

// RedisStore keeps carts as JSON documents that expire after ttl of inactivity.
type RedisStore struct {
	storage *redis.Storage
	ttl     time.Duration
}

// NewRedisStore returns a store backed by storage.
func NewRedisStore(storage *redis.Storage, ttl time.Duration) *RedisStore {
	return &RedisStore{storage: storage, ttl: ttl}
}

func key(id uuid.UUID) string { return "cart:" + id.String() }

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*Cart, error) {
	var c Cart
	if err := s.storage.GetJSON(ctx, key(id), &c); err != nil {
		if errors.Is(err, redis.ErrKeyNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *RedisStore) Save(ctx context.Context, c *Cart) error {
	return s.storage.SetJSON(ctx, key(c.ID), c, s.ttl)
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.storage.Delete(ctx, key(id))
}

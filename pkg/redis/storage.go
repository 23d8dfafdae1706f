package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Storage stores JSON documents under prefixed keys.
type Storage struct {
	db     redis.UniversalClient
	prefix string
}

// NewStorage wraps a client. All keys are prefixed with prefix.
func NewStorage(client redis.UniversalClient, prefix string) *Storage {
	return &Storage{db: client, prefix: prefix}
}

// GetJSON decodes the value stored under key into dst.
// Returns ErrKeyNotFound when the key does not exist.
func (s *Storage) GetJSON(ctx context.Context, key string, dst any) error {
	raw, err := s.db.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrKeyNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Join(ErrFailedToDecodeValue, err)
	}
	return nil
}

// SetJSON stores v under key. Zero ttl means no expiration.
func (s *Storage) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Join(ErrFailedToEncodeValue, err)
	}
	return s.db.Set(ctx, s.prefix+key, raw, ttl).Err()
}

// Delete removes key. Missing keys are not an error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.db.Del(ctx, s.prefix+key).Err()
}

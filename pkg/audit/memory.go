package audit

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorage keeps events in memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(ctx context.Context, events ...Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// Events returns the events for a resource in insertion order.
// An empty resourceID returns every event.
func (s *MemoryStorage) Events(resource, resourceID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if resourceID == "" {
		return slices.Clone(s.events)
	}
	var out []Event
	for _, e := range s.events {
		if e.Resource == resource && e.ResourceID == resourceID {
			out = append(out, e)
		}
	}
	return out
}

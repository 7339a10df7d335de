package memory

import (
	"context"
	"sync"

	"propreg/pkg/domain"
	audit "propreg/pkg/platform/audit"
)

// InMemoryStore keeps events per property in arrival order.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[domain.PropertyID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[domain.PropertyID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.PropertyID] = append(s.events[event.PropertyID], event)
	return nil
}

func (s *InMemoryStore) ListByProperty(_ context.Context, propertyID domain.PropertyID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[propertyID]...), nil
}

package store

import (
	"context"
	"sync"

	"propreg/internal/property/models"
	"propreg/pkg/domain"
	"propreg/pkg/platform/sentinel"
)

// InMemory is the registry held in process memory. A single RWMutex makes
// every operation atomic with respect to the others: reads share the lock,
// registrations and updates serialize.
type InMemory struct {
	mu         sync.RWMutex
	properties map[domain.PropertyID]*models.Property
	lastID     domain.PropertyID
}

func NewInMemory() *InMemory {
	return &InMemory{properties: make(map[domain.PropertyID]*models.Property)}
}

// Append numbers p with the next id and stores a copy of it.
func (s *InMemory) Append(_ context.Context, p *models.Property) (domain.PropertyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.lastID.Next()
	p.ID = next
	s.properties[next] = p.Clone()
	s.lastID = next
	return next, nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.PropertyID) (*models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.properties[id]; ok {
		return p.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Count(_ context.Context) (domain.PropertyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastID, nil
}

// Execute runs validate and mutate under the write lock. When validate fails
// the stored record is untouched and its error is returned as-is.
func (s *InMemory) Execute(_ context.Context, id domain.PropertyID, validate func(*models.Property) error, mutate func(*models.Property)) (*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.properties[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := stored.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.properties[id] = working
	return working.Clone(), nil
}

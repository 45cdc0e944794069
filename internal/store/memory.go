package store

import (
	"context"
	"sync"

	"drawflow/internal/scene"
)

// MemStore is an in-memory RoomStore for tests and single-process runs.
// SetUnavailable simulates a backend outage.
type MemStore struct {
	mu          sync.RWMutex
	shapes      map[string][]scene.Shape
	settings    map[string]*scene.RoomSettings
	unavailable bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemStore {
	return &MemStore{
		shapes:   make(map[string][]scene.Shape),
		settings: make(map[string]*scene.RoomSettings),
	}
}

// SetUnavailable toggles simulated outage; every operation then fails with
// ErrUnavailable.
func (s *MemStore) SetUnavailable(down bool) {
	s.mu.Lock()
	s.unavailable = down
	s.mu.Unlock()
}

func (s *MemStore) LoadShapes(_ context.Context, roomID string) ([]scene.Shape, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unavailable {
		return nil, ErrUnavailable
	}
	return scene.CloneShapes(s.shapes[roomID]), nil
}

func (s *MemStore) SaveShapes(_ context.Context, roomID string, shapes []scene.Shape) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return ErrUnavailable
	}
	s.shapes[roomID] = scene.CloneShapes(shapes)
	return nil
}

func (s *MemStore) LoadSettings(_ context.Context, roomID string) (*scene.RoomSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unavailable {
		return nil, ErrUnavailable
	}
	if cfg := s.settings[roomID]; cfg != nil {
		c := *cfg
		return &c, nil
	}
	return nil, nil
}

func (s *MemStore) SaveSettings(_ context.Context, roomID string, settings *scene.RoomSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return ErrUnavailable
	}
	if settings == nil {
		delete(s.settings, roomID)
		return nil
	}
	c := *settings
	s.settings[roomID] = &c
	return nil
}

func (s *MemStore) Clear(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return ErrUnavailable
	}
	delete(s.shapes, roomID)
	delete(s.settings, roomID)
	return nil
}

func (s *MemStore) Close() error { return nil }

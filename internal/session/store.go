package session

import (
	"context"
	"sync"
)

// Store persists one [Mode] per user. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the user's mode, or [Idle] when none is stored.
	Get(ctx context.Context, userID int64) (Mode, error)

	// Set replaces the user's mode. Setting [Idle] clears the entry.
	Set(ctx context.Context, userID int64, m Mode) error
}

// MemoryStore is an in-process [Store].
type MemoryStore struct {
	mu    sync.RWMutex
	modes map[int64]Mode
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{modes: make(map[int64]Mode)}
}

// Get implements [Store].
func (s *MemoryStore) Get(_ context.Context, userID int64) (Mode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.modes[userID]; ok {
		return m, nil
	}
	return Idle{}, nil
}

// Set implements [Store].
func (s *MemoryStore) Set(_ context.Context, userID int64, m Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if IsIdle(m) {
		delete(s.modes, userID)
		return nil
	}
	s.modes[userID] = m
	return nil
}

// Len returns the number of users not in [Idle].
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.modes)
}

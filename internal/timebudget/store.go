package timebudget

import (
	"context"
	"sync"
	"time"
)

// MarkerStore is the minimal durable key-value store scoped to an attempt id.
// It persists the pause-start marker and the accumulated paused seconds so a
// paused attempt survives a full reload. Any local persistent storage suffices.
type MarkerStore interface {
	PauseStart(ctx context.Context, attemptID string) (time.Time, bool, error)
	SetPauseStart(ctx context.Context, attemptID string, at time.Time) error
	ClearPauseStart(ctx context.Context, attemptID string) error

	PausedSeconds(ctx context.Context, attemptID string) (int, error)
	SetPausedSeconds(ctx context.Context, attemptID string, seconds int) error
	ClearPausedSeconds(ctx context.Context, attemptID string) error
}

// MemoryStore is an in-process MarkerStore, used by tests and as a default
// when no durable backend is wired.
type MemoryStore struct {
	mu     sync.Mutex
	starts map[string]time.Time
	paused map[string]int
}

// NewMemoryStore creates an empty in-memory marker store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		starts: make(map[string]time.Time),
		paused: make(map[string]int),
	}
}

func (s *MemoryStore) PauseStart(_ context.Context, attemptID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.starts[attemptID]
	return at, ok, nil
}

func (s *MemoryStore) SetPauseStart(_ context.Context, attemptID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts[attemptID] = at
	return nil
}

func (s *MemoryStore) ClearPauseStart(_ context.Context, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.starts, attemptID)
	return nil
}

func (s *MemoryStore) PausedSeconds(_ context.Context, attemptID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused[attemptID], nil
}

func (s *MemoryStore) SetPausedSeconds(_ context.Context, attemptID string, seconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[attemptID] = seconds
	return nil
}

func (s *MemoryStore) ClearPausedSeconds(_ context.Context, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paused, attemptID)
	return nil
}

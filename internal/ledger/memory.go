package ledger

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory. Entries do not survive a
// restart; use RedisStore when several API replicas share actors.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, actorID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[actorID].clone(), nil
}

func (s *MemoryStore) Set(_ context.Context, actorID string, entry Entry) error {
	s.mu.Lock()
	s.entries[actorID] = entry.clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, actorID string) error {
	s.mu.Lock()
	delete(s.entries, actorID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of actors with a stored entry.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

package state

import (
	"context"
	"sync"

	"github.com/vk/converge/internal/addr"
)

// MemStore is an in-process Store for tests and dry runs. Records survive
// lock/unlock cycles (standing in for file persistence) but not the process.
type MemStore struct {
	mu      sync.Mutex
	locked  bool
	records map[addr.Address]*Record
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[addr.Address]*Record)}
}

// Lock implements Store.
func (s *MemStore) Lock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return &ConcurrentModificationError{}
	}
	s.locked = true
	return nil
}

// Unlock implements Store.
func (s *MemStore) Unlock() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locked {
		return errNotLocked
	}
	s.locked = false
	return nil
}

// Get implements Store.
func (s *MemStore) Get(a addr.Address) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locked {
		return nil, false, errNotLocked
	}
	rec, ok := s.records[a]
	return rec, ok, nil
}

// Put implements Store.
func (s *MemStore) Put(a addr.Address, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locked {
		return errNotLocked
	}
	s.records[a] = rec
	return nil
}

// Remove implements Store.
func (s *MemStore) Remove(a addr.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locked {
		return errNotLocked
	}
	delete(s.records, a)
	return nil
}

// All implements Store.
func (s *MemStore) All() (map[addr.Address]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locked {
		return nil, errNotLocked
	}
	out := make(map[addr.Address]*Record, len(s.records))
	for a, rec := range s.records {
		out[a] = rec
	}
	return out, nil
}

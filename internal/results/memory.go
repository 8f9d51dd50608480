package results

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps records for the life of the process.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	byID        map[uuid.UUID]Record
	order       []uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.byID = make(map[uuid.UUID]Record)
	s.order = nil
	return nil
}

func (s *MemoryStore) Save(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if _, ok := s.byID[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.byID[r.ID] = r
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return Record{}, false, ErrNotInitialized
	}
	r, ok := s.byID[id]
	return r, ok, nil
}

func (s *MemoryStore) List(_ context.Context, batch string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	var out []Record
	for _, id := range s.order {
		if r := s.byID[id]; batch == "" || r.Batch == batch {
			out = append(out, r)
		}
	}
	return out, nil
}

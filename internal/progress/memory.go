package progress

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps records in process. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

func (s *MemoryStore) Init(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := NewRecord(runID, s.now())
	s.records[runID] = &rec
	return nil
}

func (s *MemoryStore) Update(_ context.Context, runID, stage string, upd StageUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return rec.Apply(stage, upd, s.now())
}

func (s *MemoryStore) Get(_ context.Context, runID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[runID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	out := *rec
	out.Stages = slices.Clone(rec.Stages)
	return out, nil
}

func (s *MemoryStore) SetState(_ context.Context, runID string, state State, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rec.SetState(state, message, s.now())
	return nil
}

package session

import (
	"context"
	"sync"

	"retell/pkg/model"
)

// MemoryStore is a process-local Store. It never evicts, so memory grows
// with every transcript until restart; use the Redis store when that
// matters. Put overwrites an existing id (last write wins).
type MemoryStore struct {
	mu          sync.RWMutex
	transcripts map[model.TranscriptID]model.Transcript
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transcripts: make(map[model.TranscriptID]model.Transcript),
	}
}

func (s *MemoryStore) Put(_ context.Context, t *model.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[t.ID] = *t
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id model.TranscriptID) (*model.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transcripts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// Len returns the number of stored transcripts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcripts)
}

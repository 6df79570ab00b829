package checkpoint

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-memory CheckpointStore used by tests and local
// development, mirroring spec.md §4.5's semantics without a network hop.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	ttl     time.Duration
	now     func() time.Time
}

type memEntry struct {
	blob      []byte
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string]memEntry{},
		ttl:     DefaultTTLDays * 24 * time.Hour,
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, pipelineID string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte(nil), blob...)
	s.entries[pipelineID] = memEntry{blob: cp, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, pipelineID string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[pipelineID]
	if !ok {
		return nil, false, nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, pipelineID)
		return nil, false, nil
	}
	return append([]byte(nil), e.blob...), true, nil
}

func (s *MemoryStore) Delete(_ context.Context, pipelineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, pipelineID)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	return out, nil
}

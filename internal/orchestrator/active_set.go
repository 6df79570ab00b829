package orchestrator

import (
	"sync"

	"github.com/videopipeline/orchestrator/internal/pipeline"
)

// activeSet is the shared, concurrency-safe registry of in-flight
// pipelines (spec.md §5): insertion happens at executePipeline entry,
// removal in a guaranteed-exit block.
type activeSet struct {
	mu    sync.RWMutex
	items map[string]*pipeline.Pipeline
}

func newActiveSet() *activeSet {
	return &activeSet{items: map[string]*pipeline.Pipeline{}}
}

func (s *activeSet) register(p *pipeline.Pipeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.ID().String()] = p
}

func (s *activeSet) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

func (s *activeSet) lookup(id string) (*pipeline.Pipeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	return p, ok
}

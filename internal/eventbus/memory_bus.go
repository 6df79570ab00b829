package eventbus

import (
	"context"
	"sync"

	"github.com/videopipeline/orchestrator/internal/pipeline"
)

// MemoryBus is the in-memory testing EventPublisher from spec.md §4.4: an
// ordered, queryable buffer.
type MemoryBus struct {
	mu     sync.Mutex
	events []pipeline.DomainEvent
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(_ context.Context, event pipeline.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *MemoryBus) All() []pipeline.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]pipeline.DomainEvent(nil), b.events...)
}

func (b *MemoryBus) EventsOfType(t pipeline.EventType) []pipeline.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []pipeline.DomainEvent
	for _, e := range b.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (b *MemoryBus) EventsOfAggregate(id pipeline.ProcessingID) []pipeline.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []pipeline.DomainEvent
	for _, e := range b.events {
		if e.AggregateID == id {
			out = append(out, e)
		}
	}
	return out
}

package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/videopipeline/orchestrator/internal/pipeline"
)

func mustPublish(t *testing.T, b *MemoryBus, aggID pipeline.ProcessingID, typ pipeline.EventType) {
	t.Helper()
	err := b.Publish(context.Background(), pipeline.DomainEvent{
		EventID:     uuid.New(),
		Type:        typ,
		AggregateID: aggID,
		Version:     pipeline.SchemaVersion,
		Payload:     map[string]any{},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestMemoryBus_AllPreservesPublishOrder(t *testing.T) {
	b := NewMemoryBus()
	id := pipeline.NewProcessingID()
	mustPublish(t, b, id, pipeline.EventPipelineStarted)
	mustPublish(t, b, id, pipeline.EventStageCompleted)
	mustPublish(t, b, id, pipeline.EventPipelineCompleted)

	all := b.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	want := []pipeline.EventType{pipeline.EventPipelineStarted, pipeline.EventStageCompleted, pipeline.EventPipelineCompleted}
	for i, e := range all {
		if e.Type != want[i] {
			t.Fatalf("event %d: got %s, want %s", i, e.Type, want[i])
		}
	}
}

func TestMemoryBus_EventsOfTypeFilters(t *testing.T) {
	b := NewMemoryBus()
	id := pipeline.NewProcessingID()
	mustPublish(t, b, id, pipeline.EventPipelineStarted)
	mustPublish(t, b, id, pipeline.EventStageCompleted)
	mustPublish(t, b, id, pipeline.EventStageCompleted)

	got := b.EventsOfType(pipeline.EventStageCompleted)
	if len(got) != 2 {
		t.Fatalf("expected 2 StageCompleted events, got %d", len(got))
	}
}

func TestMemoryBus_EventsOfAggregateFilters(t *testing.T) {
	b := NewMemoryBus()
	idA := pipeline.NewProcessingID()
	idB := pipeline.NewProcessingID()
	mustPublish(t, b, idA, pipeline.EventPipelineStarted)
	mustPublish(t, b, idB, pipeline.EventPipelineStarted)
	mustPublish(t, b, idA, pipeline.EventPipelineCompleted)

	got := b.EventsOfAggregate(idA)
	if len(got) != 2 {
		t.Fatalf("expected 2 events for aggregate A, got %d", len(got))
	}
	for _, e := range got {
		if e.AggregateID != idA {
			t.Fatalf("unexpected aggregate id %v in filtered result", e.AggregateID)
		}
	}
}

func TestMemoryBus_AllReturnsDefensiveCopy(t *testing.T) {
	b := NewMemoryBus()
	mustPublish(t, b, pipeline.NewProcessingID(), pipeline.EventPipelineStarted)

	snapshot := b.All()
	snapshot[0].Type = pipeline.EventStageFailed

	again := b.All()
	if again[0].Type != pipeline.EventPipelineStarted {
		t.Fatal("mutating a snapshot slice leaked into the bus's internal state")
	}
}

// failingPublisher always errors; the test below checks that its error
// comes back unchanged through the Publisher interface.
type failingPublisher struct {
	err error
}

func (f failingPublisher) Publish(context.Context, pipeline.DomainEvent) error {
	return f.err
}

func TestFailingPublisher_SurfacesError(t *testing.T) {
	want := errors.New("transport down")
	var pub Publisher = failingPublisher{err: want}

	err := pub.Publish(context.Background(), pipeline.DomainEvent{})
	if !errors.Is(err, want) {
		t.Fatalf("got %v, want %v", err, want)
	}
}

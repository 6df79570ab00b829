package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/videopipeline/orchestrator/internal/pipeline"
	"github.com/videopipeline/orchestrator/internal/platform/logger"
)

// sqlite stands in for Postgres in tests; AutoMigrate/Create/Find behave
// identically for this package's purposes, and it avoids a live database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&PipelineEventRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestStore_RecordAndListByPipeline(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)

	pipelineID := pipeline.NewProcessingID()
	videoID := pipeline.NewVideoID()

	events := []pipeline.DomainEvent{
		{
			EventID:     uuid.New(),
			Type:        pipeline.EventPipelineStarted,
			AggregateID: pipelineID,
			OccurredOn:  time.Now().UTC(),
			Version:     pipeline.SchemaVersion,
			Payload:     map[string]any{"pipelineId": pipelineID.String(), "videoId": videoID.String()},
		},
		{
			EventID:     uuid.New(),
			Type:        pipeline.EventPipelineCompleted,
			AggregateID: pipelineID,
			OccurredOn:  time.Now().UTC().Add(time.Second),
			Version:     pipeline.SchemaVersion,
			Payload:     map[string]any{"pipelineId": pipelineID.String(), "videoId": videoID.String()},
		},
	}
	for _, e := range events {
		if err := store.Record(context.Background(), e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	rows, err := store.ListByPipeline(context.Background(), uuid.UUID(pipelineID))
	if err != nil {
		t.Fatalf("ListByPipeline: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].EventType != string(pipeline.EventPipelineStarted) || rows[1].EventType != string(pipeline.EventPipelineCompleted) {
		t.Fatalf("unexpected event order: %+v", rows)
	}
}

type stubPublisher struct {
	published []pipeline.DomainEvent
}

func (s *stubPublisher) Publish(_ context.Context, event pipeline.DomainEvent) error {
	s.published = append(s.published, event)
	return nil
}

func TestAuditingPublisher_RecordsThenDelegates(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)
	inner := &stubPublisher{}
	pub := NewAuditingPublisher(inner, store, logger.Nop())

	pipelineID := pipeline.NewProcessingID()
	event := pipeline.DomainEvent{
		EventID:     uuid.New(),
		Type:        pipeline.EventPipelineStarted,
		AggregateID: pipelineID,
		OccurredOn:  time.Now().UTC(),
		Version:     pipeline.SchemaVersion,
		Payload:     map[string]any{"pipelineId": pipelineID.String()},
	}
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(inner.published) != 1 {
		t.Fatalf("expected delegate to receive 1 event, got %d", len(inner.published))
	}
	rows, err := store.ListByPipeline(context.Background(), uuid.UUID(pipelineID))
	if err != nil {
		t.Fatalf("ListByPipeline: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(rows))
	}
}

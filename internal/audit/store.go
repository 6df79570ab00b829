package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/videopipeline/orchestrator/internal/pipeline"
)

// Store persists DomainEvents as an append-only ledger.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Record(ctx context.Context, event pipeline.DomainEvent) error {
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	pipelineID, err := uuid.Parse(event.AggregateID.String())
	if err != nil {
		return fmt.Errorf("parse aggregate id: %w", err)
	}
	videoID, _ := uuid.Parse(fmt.Sprint(event.Payload["videoId"]))

	record := PipelineEventRecord{
		PipelineID:    pipelineID,
		VideoID:       videoID,
		EventID:       event.EventID,
		EventType:     string(event.Type),
		Version:       event.Version,
		CorrelationID: event.CorrelationID,
		CausationID:   event.CausationID,
		OccurredOn:    event.OccurredOn,
		Payload:       datatypes.JSON(payloadJSON),
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

func (s *Store) ListByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]PipelineEventRecord, error) {
	var out []PipelineEventRecord
	err := s.db.WithContext(ctx).
		Where("pipeline_id = ?", pipelineID).
		Order("occurred_on asc").
		Find(&out).Error
	return out, err
}

// Package audit provides a durable, append-only record of every DomainEvent
// a pipeline emits, independent of the event bus. Where the EventPublisher
// is for downstream consumers, this ledger is for operators: it survives a
// broker outage and answers "what happened to pipeline X" directly against
// Postgres.
package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PipelineEventRecord is one row per emitted DomainEvent.
type PipelineEventRecord struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PipelineID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"pipeline_id"`
	VideoID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"video_id"`
	EventID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"event_id"`
	EventType     string         `gorm:"column:event_type;not null;index" json:"event_type"`
	Version       int            `gorm:"column:version;not null" json:"version"`
	CorrelationID string         `gorm:"column:correlation_id;index" json:"correlation_id,omitempty"`
	CausationID   string         `gorm:"column:causation_id;index" json:"causation_id,omitempty"`
	OccurredOn    time.Time      `gorm:"column:occurred_on;not null;index" json:"occurred_on"`
	Payload       datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	CreatedAt     time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PipelineEventRecord) TableName() string { return "pipeline_event" }

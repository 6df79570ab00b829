package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the stable string discriminator carried on the wire.
type EventType string

const (
	EventPipelineStarted   EventType = "PipelineStarted"
	EventStageCompleted    EventType = "StageCompleted"
	EventStageFailed       EventType = "StageFailed"
	EventPipelineCompleted EventType = "PipelineCompleted"
	EventPipelineCancelled EventType = "PipelineCancelled"
)

// SchemaVersion is the DomainEvent schema version (spec.md §3).
const SchemaVersion = 1

// DomainEvent is the tagged-variant record of an aggregate state
// transition. Rather than a class hierarchy, every variant is modeled as
// the same struct carrying a type-specific Payload map — this keeps the
// wire format centralized in Serialize() instead of scattered across
// per-type marshalers.
type DomainEvent struct {
	EventID       uuid.UUID
	Type          EventType
	AggregateID   ProcessingID
	OccurredOn    time.Time
	Version       int
	CorrelationID string
	CausationID   string
	Payload       map[string]any
}

func newEvent(aggID ProcessingID, t EventType, correlationID, causationID string, payload map[string]any) DomainEvent {
	return DomainEvent{
		EventID:       uuid.New(),
		Type:          t,
		AggregateID:   aggID,
		OccurredOn:    time.Now().UTC(),
		Version:       SchemaVersion,
		CorrelationID: correlationID,
		CausationID:   causationID,
		Payload:       payload,
	}
}

// Serialize walks the variant into a flat mapping: baseline keys merged
// with the type-specific payload, per spec.md §4.3.
func (e DomainEvent) Serialize() map[string]any {
	out := map[string]any{
		"eventId":     e.EventID.String(),
		"eventType":   string(e.Type),
		"aggregateId": e.AggregateID.String(),
		"version":     e.Version,
		"occurredOn":  e.OccurredOn.Format(time.RFC3339Nano),
	}
	if e.CorrelationID != "" {
		out["correlationId"] = e.CorrelationID
	}
	if e.CausationID != "" {
		out["causationId"] = e.CausationID
	}
	for k, v := range e.Payload {
		out[k] = v
	}
	return out
}

// Topic is the event bus topic name: "<prefix>-<lowercased eventType>".
func (e DomainEvent) Topic(prefix string) string {
	return prefix + "-" + lowerEventType(e.Type)
}

func lowerEventType(t EventType) string {
	s := string(t)
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		out[i] = c
	}
	return string(out)
}

// --- Variant constructors -------------------------------------------------

func newPipelineStartedEvent(p *Pipeline, correlationID, causationID string) DomainEvent {
	return newEvent(p.id, EventPipelineStarted, correlationID, causationID, map[string]any{
		"pipelineId":  p.id.String(),
		"videoId":     p.videoID.String(),
		"totalStages": len(p.stageOrder),
		"configuration": map[string]any{
			"modelVersion":      p.configuration.ModelVersion,
			"batchSize":         p.configuration.BatchSize,
			"gpuEnabled":        p.configuration.GPUEnabled,
			"checkpointEnabled": p.configuration.CheckpointEnabled,
			"maxRetries":        p.configuration.EffectiveMaxRetries(),
			"timeoutSeconds":    p.configuration.TimeoutSeconds,
		},
	})
}

func newStageCompletedEvent(p *Pipeline, result StageResult, correlationID, causationID string) DomainEvent {
	return newEvent(p.id, EventStageCompleted, correlationID, causationID, map[string]any{
		"pipelineId":         p.id.String(),
		"videoId":            p.videoID.String(),
		"stageName":          result.StageName,
		"progressPercentage": p.progressPercentageLocked(),
		"result": map[string]any{
			"stageName":        result.StageName,
			"status":           string(result.Status),
			"processingTimeMs": result.ProcessingTimeMs,
			"metadata":         result.Metadata,
			"errorMessage":     result.ErrorMessage,
		},
	})
}

func newStageFailedEvent(p *Pipeline, name, errorMessage string, retryCount, maxRetries int, correlationID, causationID string) DomainEvent {
	return newEvent(p.id, EventStageFailed, correlationID, causationID, map[string]any{
		"pipelineId":   p.id.String(),
		"videoId":      p.videoID.String(),
		"stageName":    name,
		"errorMessage": errorMessage,
		"retryCount":   retryCount,
		"maxRetries":   maxRetries,
		"willRetry":    retryCount < maxRetries,
	})
}

func newPipelineCompletedEvent(p *Pipeline, totalProcessingTimeMs int64, correlationID, causationID string) DomainEvent {
	results := map[string]any{}
	for name, r := range p.stageResults {
		results[name] = map[string]any{
			"status":           string(r.Status),
			"processingTimeMs": r.ProcessingTimeMs,
			"metadata":         r.Metadata,
		}
	}
	return newEvent(p.id, EventPipelineCompleted, correlationID, causationID, map[string]any{
		"pipelineId":            p.id.String(),
		"videoId":               p.videoID.String(),
		"totalProcessingTimeMs": totalProcessingTimeMs,
		"stageResults":          results,
	})
}

func newPipelineCancelledEvent(p *Pipeline, reason, correlationID, causationID string) DomainEvent {
	return newEvent(p.id, EventPipelineCancelled, correlationID, causationID, map[string]any{
		"pipelineId": p.id.String(),
		"videoId":    p.videoID.String(),
		"reason":     reason,
	})
}

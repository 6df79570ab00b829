// Package eventbus defines the transport-agnostic EventPublisher (spec.md
// §4.4) and its two implementations.
package eventbus

import (
	"context"

	"github.com/videopipeline/orchestrator/internal/pipeline"
)

// Publisher is fire-and-forget with at-least-once semantics. Implementations
// must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event pipeline.DomainEvent) error
}

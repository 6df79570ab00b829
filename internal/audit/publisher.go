package audit

import (
	"context"

	"github.com/videopipeline/orchestrator/internal/pipeline"
	"github.com/videopipeline/orchestrator/internal/platform/logger"
)

// Publisher mirrors eventbus.Publisher; declared locally so this package
// does not need to import eventbus just for the interface shape.
type Publisher interface {
	Publish(ctx context.Context, event pipeline.DomainEvent) error
}

// AuditingPublisher decorates a Publisher with a best-effort write to the
// durable audit ledger before delegating. A ledger write failure is logged
// and does not block publication — the ledger is an operator convenience,
// not part of the orchestrator's correctness contract (only the underlying
// EventPublisher's failure is fatal, per spec.md §7).
type AuditingPublisher struct {
	inner Publisher
	store *Store
	log   *logger.Logger
}

func NewAuditingPublisher(inner Publisher, store *Store, log *logger.Logger) *AuditingPublisher {
	return &AuditingPublisher{inner: inner, store: store, log: log.With("component", "AuditingPublisher")}
}

func (p *AuditingPublisher) Publish(ctx context.Context, event pipeline.DomainEvent) error {
	if err := p.store.Record(ctx, event); err != nil {
		p.log.Warn("failed to append audit record", "eventId", event.EventID.String(), "error", err)
	}
	return p.inner.Publish(ctx, event)
}

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/videopipeline/orchestrator/internal/pipeline"
	"github.com/videopipeline/orchestrator/internal/platform/logger"
)

// RedisBus is the broker-backed EventPublisher, grounded on the teacher's
// clients/redis/sse_bus.go publish/subscribe pattern but using Redis
// Streams (XADD) instead of Pub/Sub so that published events are durable
// and replayable by consumer groups, matching spec.md §4.4's "at-least-once,
// partitioned by aggregateId" contract. Each topic ("<prefix>-<lowercased eventType>")
// is sharded into a fixed number of streams; an aggregateId always hashes
// to the same shard, so all of one pipeline's events land on one ordered
// stream — mirroring a Kafka partition.
type RedisBus struct {
	rdb      *goredis.Client
	log      *logger.Logger
	prefix   string
	shards   int
}

type RedisBusOption func(*RedisBus)

func WithShardCount(n int) RedisBusOption {
	return func(b *RedisBus) {
		if n > 0 {
			b.shards = n
		}
	}
}

func WithTopicPrefix(prefix string) RedisBusOption {
	return func(b *RedisBus) { b.prefix = prefix }
}

func NewRedisBus(rdb *goredis.Client, log *logger.Logger, opts ...RedisBusOption) *RedisBus {
	b := &RedisBus{
		rdb:    rdb,
		log:    log.With("component", "EventBus"),
		prefix: "pipeline",
		shards: 8,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RedisBus) streamKey(event pipeline.DomainEvent) string {
	topic := event.Topic(b.prefix)
	return fmt.Sprintf("%s:shard%d", topic, shardFor(event.AggregateID.String(), b.shards))
}

func shardFor(aggregateID string, shards int) int {
	if shards <= 0 {
		shards = 1
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(aggregateID))
	return int(h.Sum32() % uint32(shards))
}

func (b *RedisBus) Publish(ctx context.Context, event pipeline.DomainEvent) error {
	body, err := json.Marshal(event.Serialize())
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	values := map[string]any{
		"eventType":   string(event.Type),
		"eventId":     event.EventID.String(),
		"aggregateId": event.AggregateID.String(),
		"version":     event.Version,
		"occurredOn":  event.OccurredOn.UnixMilli(),
		"body":        string(body),
	}
	if event.CorrelationID != "" {
		values["correlationId"] = event.CorrelationID
	}
	if event.CausationID != "" {
		values["causationId"] = event.CausationID
	}
	key := b.streamKey(event)
	if err := b.rdb.XAdd(ctx, &goredis.XAddArgs{Stream: key, Values: values}).Err(); err != nil {
		b.log.Error("event publish failed", "stream", key, "eventType", event.Type, "error", err)
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

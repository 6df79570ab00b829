package checkpoint

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/videopipeline/orchestrator/internal/platform/logger"
)

// RedisStore is the production CheckpointStore, grounded on the teacher's
// redis-backed SSE bus (internal/clients/redis/sse_bus.go): a thin wrapper
// around a single *redis.Client with the key format "<prefix>:<pipelineID>".
type RedisStore struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

type RedisStoreOption func(*RedisStore)

func WithTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

func WithPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

func NewRedisStore(rdb *goredis.Client, log *logger.Logger, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		log:    log.With("component", "CheckpointStore"),
		rdb:    rdb,
		prefix: "pipeline-checkpoint",
		ttl:    DefaultTTLDays * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(pipelineID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, pipelineID)
}

// Save refreshes the TTL on every write, per spec.md §4.5.
func (s *RedisStore) Save(ctx context.Context, pipelineID string, blob []byte) error {
	if err := s.rdb.Set(ctx, s.key(pipelineID), blob, s.ttl).Err(); err != nil {
		s.log.Error("checkpoint save failed", "pipelineId", pipelineID, "error", err)
		return fmt.Errorf("checkpoint save: %w", err)
	}
	return nil
}

// Load returns (nil, false, nil) if missing or expired; never fails
// silently on a genuine transport error.
func (s *RedisStore) Load(ctx context.Context, pipelineID string) ([]byte, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(pipelineID)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		s.log.Error("checkpoint load failed", "pipelineId", pipelineID, "error", err)
		return nil, false, fmt.Errorf("checkpoint load: %w", err)
	}
	return raw, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, pipelineID string) error {
	if err := s.rdb.Del(ctx, s.key(pipelineID)).Err(); err != nil {
		s.log.Error("checkpoint delete failed", "pipelineId", pipelineID, "error", err)
		return fmt.Errorf("checkpoint delete: %w", err)
	}
	return nil
}

// List scans for all checkpoint keys under this store's prefix and returns
// the bare pipeline ids (without the prefix).
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	var cursor uint64
	pattern := s.prefix + ":*"
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			s.log.Error("checkpoint list failed", "error", err)
			return nil, fmt.Errorf("checkpoint list: %w", err)
		}
		for _, k := range keys {
			ids = append(ids, strings.TrimPrefix(k, s.prefix+":"))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}

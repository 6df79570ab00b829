package app

import (
	"github.com/videopipeline/orchestrator/internal/platform/env"
	"github.com/videopipeline/orchestrator/internal/platform/logger"
)

type Config struct {
	Port string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CheckpointPrefix string
	CheckpointTTL    int // days

	EventTopicPrefix string
	EventShardCount  int

	AuditEnabled bool

	LogMode string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:             env.GetString("PORT", "8080", log),
		RedisAddr:        env.GetString("REDIS_ADDR", "localhost:6379", log),
		RedisPassword:    env.GetString("REDIS_PASSWORD", "", log),
		RedisDB:          env.GetInt("REDIS_DB", 0, log),
		CheckpointPrefix: env.GetString("CHECKPOINT_PREFIX", "pipeline-checkpoint", log),
		CheckpointTTL:    env.GetInt("CHECKPOINT_TTL_DAYS", 7, log),
		EventTopicPrefix: env.GetString("EVENT_TOPIC_PREFIX", "pipeline", log),
		EventShardCount:  env.GetInt("EVENT_SHARD_COUNT", 8, log),
		AuditEnabled:     env.GetBool("AUDIT_ENABLED", false, log),
		LogMode:          env.GetString("LOG_MODE", "development", log),
	}
}

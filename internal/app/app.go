// Package app wires the orchestrator and its adapters into a runnable
// service, grounded on the teacher's internal/app.App bootstrap.
package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/gin-gonic/gin"

	"github.com/videopipeline/orchestrator/internal/audit"
	"github.com/videopipeline/orchestrator/internal/checkpoint"
	"github.com/videopipeline/orchestrator/internal/eventbus"
	"github.com/videopipeline/orchestrator/internal/httpapi"
	"github.com/videopipeline/orchestrator/internal/orchestrator"
	"github.com/videopipeline/orchestrator/internal/pipeline"
	"github.com/videopipeline/orchestrator/internal/platform/logger"
	"github.com/videopipeline/orchestrator/internal/progress"
	"github.com/videopipeline/orchestrator/internal/stages"
	"github.com/videopipeline/orchestrator/internal/tracing"
)

type App struct {
	Log          *logger.Logger
	Cfg          Config
	Router       *gin.Engine
	Orchestrator *orchestrator.Orchestrator
	ProgressHub  *progress.WebSocketHub

	redis           *goredis.Client
	tracingShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := "development"
	bootLog, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(bootLog)
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tracingShutdown := tracing.Init(context.Background(), log, tracing.ConfigFromEnv(log))

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	checkpointStore := checkpoint.NewRedisStore(rdb, log,
		checkpoint.WithPrefix(cfg.CheckpointPrefix),
		checkpoint.WithTTL(time.Duration(cfg.CheckpointTTL)*24*time.Hour),
	)

	var publisher eventbus.Publisher = eventbus.NewRedisBus(rdb, log,
		eventbus.WithTopicPrefix(cfg.EventTopicPrefix),
		eventbus.WithShardCount(cfg.EventShardCount),
	)
	if cfg.AuditEnabled {
		db, err := audit.Open(log)
		if err != nil {
			log.Warn("audit ledger unavailable; continuing without it", "error", err)
		} else {
			publisher = audit.NewAuditingPublisher(publisher, audit.NewStore(db), log)
		}
	}

	progressHub := progress.NewWebSocketHub(log)

	orch := orchestrator.New(log, publisher, checkpointStore, progressHub)

	pipelineHandler := httpapi.NewPipelineHandler(log, orch, defaultStageProvider)
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Pipeline: pipelineHandler,
		Progress: progressHub,
	})

	return &App{
		Log:             log,
		Cfg:             cfg,
		Router:          router,
		Orchestrator:    orch,
		ProgressHub:     progressHub,
		redis:           rdb,
		tracingShutdown: tracingShutdown,
	}, nil
}

// defaultStageProvider wires the passthrough stage chain; deployments
// embedding this orchestrator with real stage bodies replace this with
// their own StageProvider when constructing the PipelineHandler.
func defaultStageProvider(config pipeline.PipelineConfiguration) []pipeline.Stage {
	return []pipeline.Stage{
		stages.NewPassthrough("decode"),
		stages.NewPassthrough("analyze", "decode"),
		stages.NewPassthrough("encode", "analyze"),
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.tracingShutdown != nil {
		_ = a.tracingShutdown(context.Background())
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

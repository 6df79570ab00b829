package audit

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/videopipeline/orchestrator/internal/platform/env"
	"github.com/videopipeline/orchestrator/internal/platform/logger"
)

// Open connects to Postgres and migrates the audit schema, grounded on the
// teacher's db.NewPostgresService bootstrap.
func Open(appLog *logger.Logger) (*gorm.DB, error) {
	host := env.GetString("AUDIT_POSTGRES_HOST", "localhost", appLog)
	port := env.GetString("AUDIT_POSTGRES_PORT", "5432", appLog)
	user := env.GetString("AUDIT_POSTGRES_USER", "postgres", appLog)
	password := env.GetString("AUDIT_POSTGRES_PASSWORD", "", appLog)
	name := env.GetString("AUDIT_POSTGRES_NAME", "pipeline_orchestrator", appLog)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}
	if err := db.AutoMigrate(&PipelineEventRecord{}); err != nil {
		return nil, fmt.Errorf("automigrate audit schema: %w", err)
	}
	return db, nil
}

// Package tracing installs the global OpenTelemetry tracer provider and
// propagator that the orchestrator's per-stage spans are recorded with
// (those spans carry pipeline.id and stage.name attributes; correlation and
// causation ids are not set as span attributes), adapted from the teacher's
// internal/observability otel bootstrap.
package tracing

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/videopipeline/orchestrator/internal/platform/env"
	"github.com/videopipeline/orchestrator/internal/platform/logger"
)

type Config struct {
	ServiceName    string
	Environment    string
	OTLPEndpoint   string
	SampleRatio    float64
	OTLPInsecure   bool
}

var (
	once     sync.Once
	shutdown func(context.Context) error
)

// Init installs a global TracerProvider; call the returned shutdown func
// during graceful shutdown. Safe to call more than once — only the first
// call takes effect.
func Init(ctx context.Context, log *logger.Logger, cfg Config) func(context.Context) error {
	once.Do(func() {
		serviceName := strings.TrimSpace(cfg.ServiceName)
		if serviceName == "" {
			serviceName = "pipeline-orchestrator"
		}
		res, err := resource.New(ctx,
			resource.WithAttributes(
				attribute.String("service.name", serviceName),
				attribute.String("deployment.environment", cfg.Environment),
			),
		)
		if err != nil {
			log.Warn("otel resource init failed; continuing with default resource", "error", err)
			res = resource.Default()
		}

		exporter, err := buildExporter(ctx, log, cfg.OTLPEndpoint, cfg.OTLPInsecure)
		if err != nil {
			log.Warn("otel exporter init failed; tracing disabled", "error", err)
			return
		}

		ratio := cfg.SampleRatio
		if ratio <= 0 {
			ratio = 1.0
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		shutdown = tp.Shutdown
		log.Info("otel tracing initialized", "service", serviceName, "endpoint", cfg.OTLPEndpoint)
	})
	if shutdown == nil {
		return func(context.Context) error { return nil }
	}
	return shutdown
}

// ConfigFromEnv reads OTEL_* variables the way the rest of this repo reads
// configuration (internal/platform/env), logging and defaulting rather than
// panicking on malformed values.
func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		ServiceName:  env.GetString("OTEL_SERVICE_NAME", "pipeline-orchestrator", log),
		Environment:  env.GetString("APP_ENV", "development", log),
		OTLPEndpoint: env.GetString("OTEL_EXPORTER_OTLP_ENDPOINT", "", log),
		SampleRatio:  1.0,
		OTLPInsecure: env.GetBool("OTEL_EXPORTER_OTLP_INSECURE", true, log),
	}
}

func buildExporter(ctx context.Context, log *logger.Logger, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	if endpoint != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	log.Warn("no OTEL_EXPORTER_OTLP_ENDPOINT configured; using stdout trace exporter")
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

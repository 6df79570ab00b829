// Package orchestrator drives a Pipeline aggregate through its declared
// stages, wiring the aggregate to an EventPublisher, a checkpoint Store, and
// a ProgressNotifier in the ordering spec.md §4.7 requires: mutate the
// aggregate, flush its pending events, persist a checkpoint (non-fatal),
// then notify observers.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/videopipeline/orchestrator/internal/checkpoint"
	"github.com/videopipeline/orchestrator/internal/eventbus"
	"github.com/videopipeline/orchestrator/internal/pipeline"
	"github.com/videopipeline/orchestrator/internal/platform/logger"
	"github.com/videopipeline/orchestrator/internal/progress"
)

var tracer = otel.Tracer("github.com/videopipeline/orchestrator/internal/orchestrator")

// ErrPipelineNotFound is returned by operations addressing a pipeline id that
// is not (or no longer) in the active registry.
var ErrPipelineNotFound = errors.New("orchestrator: pipeline not found")

// Orchestrator is the single entry point for running, resuming, cancelling,
// and inspecting pipelines (spec.md §4.7). It holds no stage-specific logic;
// stages are supplied by the caller on each call.
type Orchestrator struct {
	log *logger.Logger

	events      eventbus.Publisher
	checkpoints checkpoint.Store
	notifier    progress.Notifier

	active *activeSet
}

func New(log *logger.Logger, events eventbus.Publisher, checkpoints checkpoint.Store, notifier progress.Notifier) *Orchestrator {
	return &Orchestrator{
		log:         log.With("component", "Orchestrator"),
		events:      events,
		checkpoints: checkpoints,
		notifier:    notifier,
		active:      newActiveSet(),
	}
}

// ExecutePipeline constructs a fresh Pipeline for videoID, starts it, and
// drives every declared stage to completion, failure, or cancellation
// (spec.md §4.7 executePipeline). inputRef seeds the first stage's input
// under the "video_path" key.
func (o *Orchestrator) ExecutePipeline(ctx context.Context, videoID pipeline.VideoID, inputRef string, config pipeline.PipelineConfiguration, stages []pipeline.Stage, correlationID string) (*pipeline.Pipeline, error) {
	p, err := pipeline.New(videoID, config, stages, correlationID)
	if err != nil {
		return nil, err
	}

	o.active.register(p)
	defer o.active.unregister(p.ID().String())

	stopTimeout := o.armTimeout(p)
	defer stopTimeout()

	if err := p.Start(); err != nil {
		return p, err
	}
	if err := o.flush(ctx, p); err != nil {
		return p, err
	}

	inputData := map[string]any{"video_path": inputRef}
	if err := o.driveStages(ctx, p, stages, 0, inputData); err != nil {
		return p, err
	}
	return p, nil
}

// SubmitPipelineAsync performs the synchronous portion of executePipeline
// (construct, start, flush the PipelineStarted event) and returns as soon as
// the pipeline is observably RUNNING, driving the remaining stages on a
// background goroutine. This is what the HTTP submission endpoint (spec.md
// §6) calls: it needs the pipelineId back immediately, not after the whole
// run completes.
func (o *Orchestrator) SubmitPipelineAsync(videoID pipeline.VideoID, inputRef string, config pipeline.PipelineConfiguration, stages []pipeline.Stage, correlationID string) (*pipeline.Pipeline, error) {
	ctx := context.Background()
	p, err := pipeline.New(videoID, config, stages, correlationID)
	if err != nil {
		return nil, err
	}

	o.active.register(p)

	if err := p.Start(); err != nil {
		o.active.unregister(p.ID().String())
		return nil, err
	}
	if err := o.flush(ctx, p); err != nil {
		o.active.unregister(p.ID().String())
		return nil, err
	}

	stopTimeout := o.armTimeout(p)
	go func() {
		defer stopTimeout()
		defer o.active.unregister(p.ID().String())
		inputData := map[string]any{"video_path": inputRef}
		if err := o.driveStages(context.Background(), p, stages, 0, inputData); err != nil {
			o.log.Warn("pipeline run ended with an error", "pipelineId", p.ID().String(), "error", err)
		}
	}()
	return p, nil
}

// ResumeFromCheckpoint restores a Pipeline from a previously saved blob and
// continues driving it from its recorded currentStageIndex (spec.md §4.7
// resumeFromCheckpoint). stages must match the checkpoint's declared order.
func (o *Orchestrator) ResumeFromCheckpoint(ctx context.Context, blob []byte, stages []pipeline.Stage) (*pipeline.Pipeline, error) {
	p, err := pipeline.UnmarshalCheckpoint(blob, stages)
	if err != nil {
		return nil, err
	}

	o.active.register(p)
	defer o.active.unregister(p.ID().String())

	if p.Status() != pipeline.PipelineStatusRunning {
		return p, nil
	}

	stopTimeout := o.armTimeout(p)
	defer stopTimeout()

	inputData := map[string]any{}
	for _, name := range p.StageOrder() {
		if r, ok := p.StageResult(name); ok && r.Status == pipeline.StatusCompleted {
			for k, v := range r.OutputData {
				inputData[k] = v
			}
		}
	}

	if err := o.driveStages(ctx, p, stages, p.CurrentStageIndex(), inputData); err != nil {
		return p, err
	}
	return p, nil
}

// CancelPipeline looks up a pipeline by id and cancels it. The running
// driveStages loop observes the transition at its next iteration boundary
// and flushes the resulting PipelineCancelled event.
func (o *Orchestrator) CancelPipeline(ctx context.Context, pipelineID string, reason string) error {
	p, ok := o.active.lookup(pipelineID)
	if !ok {
		return ErrPipelineNotFound
	}
	return p.Cancel(reason)
}

// GetPipelineStatus returns the current read model for an active pipeline.
func (o *Orchestrator) GetPipelineStatus(pipelineID string) (pipeline.StatusView, bool) {
	p, ok := o.active.lookup(pipelineID)
	if !ok {
		return pipeline.StatusView{}, false
	}
	return p.StatusView(), true
}

// driveStages runs stages[startIndex:] against p, observing RUNNING status
// at the top of every iteration so an external Cancel (or an auto-completion
// inside CompleteStage) stops the loop promptly.
func (o *Orchestrator) driveStages(ctx context.Context, p *pipeline.Pipeline, stages []pipeline.Stage, startIndex int, inputData map[string]any) error {
	for i := startIndex; i < len(stages); i++ {
		if p.Status() != pipeline.PipelineStatusRunning {
			return o.flush(ctx, p)
		}

		stage := stages[i]
		name := stage.Name()

		if !p.DependenciesMet(name) {
			_ = p.FailStage(name, "dependencies not met")
			if err := o.flush(ctx, p); err != nil {
				return err
			}
			o.notifier.NotifyStageFailed(ctx, p.ID().String(), p.VideoID().String(), name, "dependencies not met")
			return pipeline.DependencyNotMetError(name)
		}

		o.notifier.NotifyStageStarted(ctx, p.ID().String(), p.VideoID().String(), name)

		result, procErr := o.invokeStage(ctx, p, stage, inputData)
		if procErr != nil {
			_ = p.FailStage(name, procErr.Error())
			if err := o.flush(ctx, p); err != nil {
				return err
			}
			o.notifier.NotifyStageFailed(ctx, p.ID().String(), p.VideoID().String(), name, procErr.Error())
			return pipeline.StageExecutionError(name, procErr)
		}

		if result.Status == pipeline.StatusFailed {
			_ = p.FailStage(name, result.ErrorMessage)
			if err := o.flush(ctx, p); err != nil {
				return err
			}
			o.notifier.NotifyStageFailed(ctx, p.ID().String(), p.VideoID().String(), name, result.ErrorMessage)
			return pipeline.StageExecutionError(name, errors.New(result.ErrorMessage))
		}

		if err := p.CompleteStage(name, result); err != nil {
			if p.Status() != pipeline.PipelineStatusRunning {
				// The pipeline left RUNNING while the stage ran (e.g. it was
				// cancelled): flush its pending event as the loop boundary does.
				return o.flush(ctx, p)
			}
			return err
		}
		if err := o.flush(ctx, p); err != nil {
			return err
		}

		if p.Configuration().CheckpointEnabled {
			if err := o.saveCheckpoint(ctx, p); err != nil {
				o.log.Warn("checkpoint save failed; continuing without it",
					"pipelineId", p.ID().String(), "stage", name, "error", err)
			}
		}

		o.notifier.NotifyStageCompleted(ctx, p.ID().String(), p.VideoID().String(), name, p.ProgressPercentage())

		for k, v := range result.OutputData {
			inputData[k] = v
		}
	}
	return nil
}

func (o *Orchestrator) invokeStage(ctx context.Context, p *pipeline.Pipeline, stage pipeline.Stage, inputData map[string]any) (pipeline.StageResult, error) {
	ctx, span := tracer.Start(ctx, "stage.process",
		trace.WithAttributes(
			attribute.String("pipeline.id", p.ID().String()),
			attribute.String("stage.name", stage.Name()),
		))
	defer span.End()

	started := time.Now()
	result, err := stage.Process(ctx, inputData, p.Configuration().StageConfigFor(stage.Name()))
	elapsed := time.Since(started).Milliseconds()
	if result.ProcessingTimeMs == 0 {
		result.ProcessingTimeMs = elapsed
	}
	if result.StageName == "" {
		result.StageName = stage.Name()
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// flush publishes every pending event in emission order and clears them
// atomically; a publish failure is fatal per spec.md §7's event-publish
// error (we must never silently drop a transition).
func (o *Orchestrator) flush(ctx context.Context, p *pipeline.Pipeline) error {
	for _, event := range p.PendingEvents() {
		if err := o.events.Publish(ctx, event); err != nil {
			o.log.Error("event publish failed; aborting pipeline run",
				"pipelineId", p.ID().String(), "eventType", event.Type, "error", err)
			return pipeline.EventPublishError(err)
		}
	}
	return nil
}

func (o *Orchestrator) saveCheckpoint(ctx context.Context, p *pipeline.Pipeline) error {
	blob, err := p.MarshalCheckpoint()
	if err != nil {
		return pipeline.CheckpointIOError("marshal", err)
	}
	if err := o.checkpoints.Save(ctx, p.ID().String(), blob); err != nil {
		return pipeline.CheckpointIOError("save", err)
	}
	return nil
}

// armTimeout starts a timer that cancels p once its configured timeout
// elapses (spec.md §5). The returned func must be called to stop the timer
// once the pipeline finishes by any other means.
func (o *Orchestrator) armTimeout(p *pipeline.Pipeline) func() {
	seconds := p.Configuration().TimeoutSeconds
	if seconds <= 0 {
		return func() {}
	}
	timer := time.AfterFunc(time.Duration(seconds)*time.Second, func() {
		if err := p.Cancel("timeout"); err != nil {
			o.log.Debug("timeout fired on an already-terminal pipeline", "pipelineId", p.ID().String())
			return
		}
		o.log.Warn("pipeline cancelled after exceeding its configured timeout",
			"pipelineId", p.ID().String(), "timeoutSeconds", seconds)
	})
	return func() { timer.Stop() }
}

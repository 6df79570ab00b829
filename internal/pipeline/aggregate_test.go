package pipeline

import (
	"context"
	"testing"
)

func noopStage(name string, deps ...string) Stage {
	return StageFunc{
		StageNameValue: name,
		Deps:           deps,
		Fn: func(ctx context.Context, inputData, stageConfig map[string]any) (StageResult, error) {
			return StageResult{StageName: name, Status: StatusCompleted}, nil
		},
	}
}

func mustNew(t *testing.T, cfg PipelineConfiguration, stages []Stage) *Pipeline {
	t.Helper()
	p, err := New(NewVideoID(), cfg, stages, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNewRejectsForwardDependency(t *testing.T) {
	_, err := New(NewVideoID(), PipelineConfiguration{}, []Stage{
		noopStage("A", "B"),
		noopStage("B"),
	}, "")
	if !IsCode(err, CodeInvalidState) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestNewRejectsDuplicateStageNames(t *testing.T) {
	_, err := New(NewVideoID(), PipelineConfiguration{}, []Stage{noopStage("A"), noopStage("A")}, "")
	if !IsCode(err, CodeInvalidState) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

// P1 + empty stage list boundary: progressPercentage is defined as 0 and the
// pipeline auto-completes on start() with zero declared stages.
func TestStartWithNoStagesAutoCompletes(t *testing.T) {
	p := mustNew(t, PipelineConfiguration{}, nil)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.Status() != PipelineStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", p.Status())
	}
	if got := p.ProgressPercentage(); got != 0 {
		t.Fatalf("progressPercentage = %v, want 0", got)
	}
}

// P1, P2: happy path through three stages drives progressPercentage and
// stageResults consistently, matching spec scenario 1's shape (aggregate
// level; the orchestrator-level equivalent lives in orchestrator_test.go).
func TestHappyPathThreeStages(t *testing.T) {
	stages := []Stage{noopStage("A"), noopStage("B"), noopStage("C")}
	p := mustNew(t, PipelineConfiguration{MaxRetries: IntPtr(0)}, stages)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, name := range []string{"A", "B", "C"} {
		if !p.DependenciesMet(name) {
			t.Fatalf("dependencies not met for %s", name)
		}
		if err := p.CompleteStage(name, StageResult{StageName: name, Status: StatusCompleted, ProcessingTimeMs: 10}); err != nil {
			t.Fatalf("CompleteStage(%s): %v", name, err)
		}
	}
	if p.Status() != PipelineStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", p.Status())
	}
	if got := p.ProgressPercentage(); got != 100.0 {
		t.Fatalf("progressPercentage = %v, want 100", got)
	}
	for _, name := range []string{"A", "B", "C"} {
		r, ok := p.StageResult(name)
		if !ok || r.Status != StatusCompleted {
			t.Fatalf("stage %s result = %+v, ok=%v; want COMPLETED", name, r, ok)
		}
	}
}

// Scenario 2 (Retry-then-fail) exercised at the aggregate level: the
// orchestrator's executePipeline never loops a stage itself (see
// orchestrator.go's driveStages and DESIGN.md's Open Question resolution),
// so this is the level at which repeated failure/retry bookkeeping is
// actually driven — the way an external retrying caller built atop this
// orchestrator would drive it.
func TestRetryThenFail(t *testing.T) {
	p := mustNew(t, PipelineConfiguration{MaxRetries: IntPtr(2)}, []Stage{noopStage("A")})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var willRetry []bool
	for i := 0; i < 3; i++ {
		if err := p.FailStage("A", "boom"); err != nil {
			t.Fatalf("FailStage iteration %d: %v", i, err)
		}
		events := p.PendingEvents()
		if len(events) != 1 {
			t.Fatalf("iteration %d: expected 1 pending event, got %d", i, len(events))
		}
		payload := events[0].Payload
		if rc := payload["retryCount"]; rc != i+1 {
			t.Fatalf("iteration %d: retryCount = %v, want %d", i, rc, i+1)
		}
		willRetry = append(willRetry, payload["willRetry"].(bool))
	}
	if willRetry[0] != true || willRetry[1] != false || willRetry[2] != false {
		t.Fatalf("willRetry sequence = %v, want [true false false]", willRetry)
	}
	if p.Status() != PipelineStatusFailed {
		t.Fatalf("status = %s, want FAILED", p.Status())
	}
	r, ok := p.StageResult("A")
	if !ok || r.Status != StatusFailed || r.ErrorMessage != "boom" {
		t.Fatalf("stageResults[A] = %+v, ok=%v; want FAILED/boom", r, ok)
	}
}

// Boundary: exactly N failures must leave the aggregate RUNNING.
func TestMaxRetryBoundaryStaysRunningAtN(t *testing.T) {
	p := mustNew(t, PipelineConfiguration{MaxRetries: IntPtr(2)}, []Stage{noopStage("A")})
	_ = p.Start()
	if err := p.FailStage("A", "boom"); err != nil {
		t.Fatalf("FailStage 1: %v", err)
	}
	if err := p.FailStage("A", "boom"); err != nil {
		t.Fatalf("FailStage 2: %v", err)
	}
	if p.Status() != PipelineStatusRunning {
		t.Fatalf("status = %s, want RUNNING after N=2 failures", p.Status())
	}
	if err := p.FailStage("A", "boom"); err != nil {
		t.Fatalf("FailStage 3: %v", err)
	}
	if p.Status() != PipelineStatusFailed {
		t.Fatalf("status = %s, want FAILED after N+1 failures", p.Status())
	}
}

// Scenario 3 (cancellation mid-flight) at the aggregate level.
func TestCancellationMidFlight(t *testing.T) {
	stages := []Stage{noopStage("A"), noopStage("B")}
	p := mustNew(t, PipelineConfiguration{}, stages)
	_ = p.Start()
	if err := p.CompleteStage("A", StageResult{StageName: "A", Status: StatusCompleted}); err != nil {
		t.Fatalf("CompleteStage(A): %v", err)
	}
	if err := p.Cancel("user"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if p.Status() != PipelineStatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", p.Status())
	}
	if got := p.ProgressPercentage(); got != 50.0 {
		t.Fatalf("progressPercentage = %v, want 50", got)
	}
}

// P5 + boundary: cancellation in a terminal state is rejected.
func TestCancelInTerminalStateRejected(t *testing.T) {
	p := mustNew(t, PipelineConfiguration{}, nil)
	_ = p.Start() // auto-completes with zero stages
	if err := p.Cancel("too late"); !IsCode(err, CodeInvalidState) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

// P8: restore(snapshot(P), stages) round-trips persistent fields.
func TestCheckpointRoundTrip(t *testing.T) {
	stages := []Stage{noopStage("A"), noopStage("B")}
	p := mustNew(t, PipelineConfiguration{CheckpointEnabled: true}, stages)
	_ = p.Start()
	_ = p.CompleteStage("A", StageResult{StageName: "A", Status: StatusCompleted, OutputData: map[string]any{"key_A": "v"}, CheckpointData: map[string]any{"frame": 10}})

	blob, err := p.MarshalCheckpoint()
	if err != nil {
		t.Fatalf("MarshalCheckpoint: %v", err)
	}
	restored, err := UnmarshalCheckpoint(blob, stages)
	if err != nil {
		t.Fatalf("UnmarshalCheckpoint: %v", err)
	}
	if restored.Status() != p.Status() {
		t.Fatalf("restored status = %s, want %s", restored.Status(), p.Status())
	}
	if restored.CurrentStageIndex() != p.CurrentStageIndex() {
		t.Fatalf("restored currentStageIndex = %d, want %d", restored.CurrentStageIndex(), p.CurrentStageIndex())
	}
	rr, ok := restored.StageResult("A")
	pr, _ := p.StageResult("A")
	if !ok || rr.Status != pr.Status || rr.OutputData["key_A"] != pr.OutputData["key_A"] {
		t.Fatalf("restored stageResults[A] = %+v, want %+v", rr, pr)
	}
}

func TestRestoreRejectsMismatchedStages(t *testing.T) {
	stages := []Stage{noopStage("A"), noopStage("B")}
	p := mustNew(t, PipelineConfiguration{}, stages)
	blob, _ := p.MarshalCheckpoint()

	_, err := UnmarshalCheckpoint(blob, []Stage{noopStage("A")})
	if !IsCode(err, CodeIncompatibleStages) {
		t.Fatalf("expected IncompatibleStagesError, got %v", err)
	}
}

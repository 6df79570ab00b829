package pipeline

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// PipelineStatus is the aggregate's lifecycle status (spec.md §3/§4.8).
type PipelineStatus string

const (
	PipelineStatusPending   PipelineStatus = "PENDING"
	PipelineStatusRunning   PipelineStatus = "RUNNING"
	PipelineStatusCompleted PipelineStatus = "COMPLETED"
	PipelineStatusFailed    PipelineStatus = "FAILED"
	PipelineStatusCancelled PipelineStatus = "CANCELLED"
)

func (s PipelineStatus) Terminal() bool {
	return s == PipelineStatusCompleted || s == PipelineStatusFailed || s == PipelineStatusCancelled
}

// stageContract is what the aggregate owns about a stage: its name and
// declared dependencies. The aggregate never holds stage bodies/resources.
type stageContract struct {
	name string
	deps []string
}

// Pipeline is the aggregate root driving one video through a bounded
// sequence of stages. All mutation happens through its own operations;
// the zero value is not valid — use New.
type Pipeline struct {
	mu sync.Mutex

	id            ProcessingID
	videoID       VideoID
	configuration PipelineConfiguration

	stageOrder []string
	stages     map[string]stageContract

	status            PipelineStatus
	currentStageIndex int
	stageResults      map[string]StageResult
	retryCounts       map[string]int
	checkpointData    map[string]map[string]any

	createdAt time.Time
	updatedAt time.Time

	pendingEvents []DomainEvent
	lastEventID   string
	correlationID string
}

// New constructs a fresh Pipeline in PENDING status (spec.md §3 Lifecycle).
// correlationID is optional and is threaded onto every emitted event.
func New(videoID VideoID, configuration PipelineConfiguration, stages []Stage, correlationID string) (*Pipeline, error) {
	order := make([]string, 0, len(stages))
	contracts := make(map[string]stageContract, len(stages))
	seen := map[string]bool{}
	for _, s := range stages {
		name := s.Name()
		if name == "" {
			return nil, InvalidStateError("New", "stage missing a name")
		}
		if seen[name] {
			return nil, InvalidStateError("New", fmt.Sprintf("duplicate stage name %q", name))
		}
		seen[name] = true
		order = append(order, name)
		contracts[name] = stageContract{name: name, deps: append([]string(nil), s.Dependencies()...)}
	}
	// A stage may not declare a dependency on a stage that appears later in
	// the declared order — this is the teacher's DAG validation narrowed to
	// spec.md's strictly-sequential model (no topological reordering).
	for i, name := range order {
		for _, dep := range contracts[name].deps {
			if !seen[dep] {
				return nil, InvalidStateError("New", fmt.Sprintf("stage %q depends on unknown stage %q", name, dep))
			}
			depIdx := indexOf(order, dep)
			if depIdx >= i {
				return nil, InvalidStateError("New", fmt.Sprintf("stage %q depends on %q which does not precede it in declared order", name, dep))
			}
		}
	}

	now := time.Now().UTC()
	p := &Pipeline{
		id:             NewProcessingID(),
		videoID:        videoID,
		configuration:  configuration.WithDefaults(),
		stageOrder:     order,
		stages:         contracts,
		status:         PipelineStatusPending,
		stageResults:   map[string]StageResult{},
		retryCounts:    map[string]int{},
		checkpointData: map[string]map[string]any{},
		createdAt:      now,
		updatedAt:      now,
		correlationID:  correlationID,
	}
	return p, nil
}

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

// --- read accessors (briefly hold the lock; spec.md §5 shared-resource policy) ---

func (p *Pipeline) ID() ProcessingID      { p.mu.Lock(); defer p.mu.Unlock(); return p.id }
func (p *Pipeline) VideoID() VideoID      { p.mu.Lock(); defer p.mu.Unlock(); return p.videoID }
func (p *Pipeline) Status() PipelineStatus { p.mu.Lock(); defer p.mu.Unlock(); return p.status }
func (p *Pipeline) Configuration() PipelineConfiguration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configuration
}
func (p *Pipeline) StageOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.stageOrder...)
}
func (p *Pipeline) CurrentStageIndex() int { p.mu.Lock(); defer p.mu.Unlock(); return p.currentStageIndex }

func (p *Pipeline) StageResult(name string) (StageResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.stageResults[name]
	return r, ok
}

func (p *Pipeline) StageResults() map[string]StageResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]StageResult, len(p.stageResults))
	for k, v := range p.stageResults {
		out[k] = v
	}
	return out
}

func (p *Pipeline) RetryCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retryCounts[name]
}

// ProgressPercentage implements invariant P4/spec.md §3 invariant 4.
func (p *Pipeline) ProgressPercentage() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progressPercentageLocked()
}

func (p *Pipeline) progressPercentageLocked() float64 {
	if len(p.stageOrder) == 0 {
		return 0
	}
	completed := 0
	for _, name := range p.stageOrder {
		if r, ok := p.stageResults[name]; ok && r.Status == StatusCompleted {
			completed++
		}
	}
	return 100 * float64(completed) / float64(len(p.stageOrder))
}

// PendingEvents drains and returns the events accumulated since the last
// drain, clearing them atomically with respect to further mutation
// (invariant 6).
func (p *Pipeline) PendingEvents() []DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.pendingEvents
	p.pendingEvents = nil
	return out
}

func (p *Pipeline) emit(e DomainEvent) {
	if p.lastEventID != "" {
		e.CausationID = p.lastEventID
	}
	p.lastEventID = e.EventID.String()
	p.pendingEvents = append(p.pendingEvents, e)
}

func (p *Pipeline) touch() { p.updatedAt = time.Now().UTC() }

// --- operations ------------------------------------------------------------

// Start transitions PENDING -> RUNNING and emits PipelineStarted.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != PipelineStatusPending {
		return InvalidStateError("start", fmt.Sprintf("pipeline is %s, not PENDING", p.status))
	}
	p.status = PipelineStatusRunning
	p.touch()
	p.emit(newPipelineStartedEvent(p, p.correlationID, ""))
	if len(p.stageOrder) == 0 {
		// spec.md §8 boundary: an empty stage list completes immediately.
		return p.completePipelineLocked()
	}
	return nil
}

// DependenciesMet reports whether every declared dependency of name has a
// COMPLETED entry in stageResults.
func (p *Pipeline) DependenciesMet(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dependenciesMetLocked(name)
}

func (p *Pipeline) dependenciesMetLocked(name string) bool {
	contract, ok := p.stages[name]
	if !ok {
		return false
	}
	for _, dep := range contract.deps {
		r, ok := p.stageResults[dep]
		if !ok || r.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// CompleteStage records a stage outcome (spec.md §4.2).
func (p *Pipeline) CompleteStage(name string, result StageResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != PipelineStatusRunning {
		return InvalidStateError("completeStage", fmt.Sprintf("pipeline is %s, not RUNNING", p.status))
	}
	if _, ok := p.stages[name]; !ok {
		return UnknownStageError(name)
	}

	p.stageResults[name] = result
	if result.CheckpointData != nil && p.configuration.CheckpointEnabled {
		p.checkpointData[name] = result.CheckpointData
	}
	p.touch()
	p.emit(newStageCompletedEvent(p, result, p.correlationID, ""))

	if result.Status == StatusCompleted && p.stageOrder[p.currentStageIndex] == name {
		p.retryCounts[name] = 0
		p.currentStageIndex++
		if p.currentStageIndex == len(p.stageOrder) {
			return p.completePipelineLocked()
		}
	}
	return nil
}

// completePipelineLocked requires every declared stage to be COMPLETED.
func (p *Pipeline) completePipelineLocked() error {
	for _, name := range p.stageOrder {
		r, ok := p.stageResults[name]
		if !ok || r.Status != StatusCompleted {
			return IncompleteStageError(name)
		}
	}
	var total int64
	for _, r := range p.stageResults {
		total += r.ProcessingTimeMs
	}
	p.status = PipelineStatusCompleted
	p.touch()
	p.emit(newPipelineCompletedEvent(p, total, p.correlationID, ""))
	return nil
}

// FailStage increments the retry counter for name and transitions the
// pipeline to FAILED once retries are exhausted (spec.md §4.2/§4.8).
func (p *Pipeline) FailStage(name, errorMessage string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.stages[name]; !ok {
		return UnknownStageError(name)
	}
	if p.status.Terminal() {
		return InvalidStateError("failStage", fmt.Sprintf("pipeline is %s", p.status))
	}

	p.retryCounts[name]++
	retryCount := p.retryCounts[name]
	maxRetries := p.configuration.EffectiveMaxRetries()

	if retryCount > maxRetries {
		p.status = PipelineStatusFailed
		p.stageResults[name] = StageResult{
			StageName:    name,
			Status:       StatusFailed,
			ErrorMessage: errorMessage,
		}
	}
	p.touch()
	p.emit(newStageFailedEvent(p, name, errorMessage, retryCount, maxRetries, p.correlationID, ""))
	return nil
}

// Cancel transitions to CANCELLED from any non-terminal status.
func (p *Pipeline) Cancel(reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.Terminal() {
		return InvalidStateError("cancel", fmt.Sprintf("pipeline is already %s", p.status))
	}
	p.status = PipelineStatusCancelled
	p.touch()
	p.emit(newPipelineCancelledEvent(p, reason, p.correlationID, ""))
	return nil
}

// CheckpointSnapshot returns a JSON-serializable view sufficient to
// restore the aggregate's control state (spec.md §4.2).
type CheckpointSnapshot struct {
	ID                ProcessingID              `json:"id"`
	VideoID           VideoID                   `json:"videoId"`
	Status            PipelineStatus            `json:"status"`
	CurrentStageIndex int                       `json:"currentStageIndex"`
	StageOrder        []string                  `json:"stageOrder"`
	Configuration     PipelineConfiguration     `json:"configuration"`
	StageResults      map[string]StageResult    `json:"stageResults"`
	RetryCounts       map[string]int            `json:"retryCounts"`
	CheckpointData    map[string]map[string]any `json:"checkpointData"`
	CreatedAt         time.Time                 `json:"createdAt"`
	UpdatedAt         time.Time                 `json:"updatedAt"`
	CorrelationID     string                    `json:"correlationId,omitempty"`
}

func (p *Pipeline) CheckpointSnapshot() CheckpointSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	results := make(map[string]StageResult, len(p.stageResults))
	for k, v := range p.stageResults {
		results[k] = v
	}
	retries := make(map[string]int, len(p.retryCounts))
	for k, v := range p.retryCounts {
		retries[k] = v
	}
	ckpt := make(map[string]map[string]any, len(p.checkpointData))
	for k, v := range p.checkpointData {
		ckpt[k] = v
	}
	return CheckpointSnapshot{
		ID:                p.id,
		VideoID:           p.videoID,
		Status:            p.status,
		CurrentStageIndex: p.currentStageIndex,
		StageOrder:        append([]string(nil), p.stageOrder...),
		Configuration:     p.configuration,
		StageResults:      results,
		RetryCounts:       retries,
		CheckpointData:    ckpt,
		CreatedAt:          p.createdAt,
		UpdatedAt:          p.updatedAt,
		CorrelationID:      p.correlationID,
	}
}

func (p *Pipeline) MarshalCheckpoint() ([]byte, error) {
	return json.Marshal(p.CheckpointSnapshot())
}

// Restore reconstructs the aggregate from a snapshot. stages must match the
// snapshot's stage-name order exactly; restoration never emits events.
func Restore(snapshot CheckpointSnapshot, stages []Stage) (*Pipeline, error) {
	if len(stages) != len(snapshot.StageOrder) {
		return nil, IncompatibleStagesError(fmt.Sprintf("expected %d stages, got %d", len(snapshot.StageOrder), len(stages)))
	}
	contracts := make(map[string]stageContract, len(stages))
	for i, s := range stages {
		if s.Name() != snapshot.StageOrder[i] {
			return nil, IncompatibleStagesError(fmt.Sprintf("stage at index %d is %q, snapshot expects %q", i, s.Name(), snapshot.StageOrder[i]))
		}
		contracts[s.Name()] = stageContract{name: s.Name(), deps: append([]string(nil), s.Dependencies()...)}
	}

	results := make(map[string]StageResult, len(snapshot.StageResults))
	for k, v := range snapshot.StageResults {
		results[k] = v
	}
	retries := make(map[string]int, len(snapshot.RetryCounts))
	for k, v := range snapshot.RetryCounts {
		retries[k] = v
	}
	ckpt := make(map[string]map[string]any, len(snapshot.CheckpointData))
	for k, v := range snapshot.CheckpointData {
		ckpt[k] = v
	}

	return &Pipeline{
		id:                snapshot.ID,
		videoID:           snapshot.VideoID,
		configuration:     snapshot.Configuration.WithDefaults(),
		stageOrder:        append([]string(nil), snapshot.StageOrder...),
		stages:            contracts,
		status:            snapshot.Status,
		currentStageIndex: snapshot.CurrentStageIndex,
		stageResults:      results,
		retryCounts:       retries,
		checkpointData:    ckpt,
		createdAt:         snapshot.CreatedAt,
		updatedAt:         snapshot.UpdatedAt,
		correlationID:     snapshot.CorrelationID,
	}, nil
}

func UnmarshalCheckpoint(data []byte, stages []Stage) (*Pipeline, error) {
	var snap CheckpointSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, Wrap(CodeCheckpointIO, "unmarshal checkpoint", err)
	}
	return Restore(snap, stages)
}

// StatusView is the read model returned by getPipelineStatus (spec.md §4.7).
type StatusView struct {
	PipelineID         string                      `json:"pipelineId"`
	VideoID            string                      `json:"videoId"`
	Status             PipelineStatus              `json:"status"`
	ProgressPercentage float64                     `json:"progressPercentage"`
	CurrentStage       string                      `json:"currentStage,omitempty"`
	StageResults       map[string]StageResultView `json:"stageResults"`
}

type StageResultView struct {
	Status           Status `json:"status"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
}

func (p *Pipeline) StatusView() StatusView {
	p.mu.Lock()
	defer p.mu.Unlock()
	var currentStage string
	if p.currentStageIndex < len(p.stageOrder) {
		currentStage = p.stageOrder[p.currentStageIndex]
	}
	results := make(map[string]StageResultView, len(p.stageResults))
	for name, r := range p.stageResults {
		results[name] = StageResultView{Status: r.Status, ProcessingTimeMs: r.ProcessingTimeMs, ErrorMessage: r.ErrorMessage}
	}
	return StatusView{
		PipelineID:         p.id.String(),
		VideoID:            p.videoID.String(),
		Status:             p.status,
		ProgressPercentage: p.progressPercentageLocked(),
		CurrentStage:       currentStage,
		StageResults:       results,
	}
}

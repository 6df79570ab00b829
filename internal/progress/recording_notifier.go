package progress

import (
	"context"
	"sync"
)

// Notification is one recorded call against a RecordingNotifier.
type Notification struct {
	Kind               MessageType
	PipelineID         string
	VideoID            string
	StageName          string
	ProgressPercentage float64
	ErrorMessage       string
}

// RecordingNotifier is a test double that captures every notification it
// receives in call order, used in place of the websocket hub in tests.
type RecordingNotifier struct {
	mu    sync.Mutex
	calls []Notification
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) NotifyStageStarted(_ context.Context, pipelineID, videoID, stageName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, Notification{Kind: MessageStageStarted, PipelineID: pipelineID, VideoID: videoID, StageName: stageName})
}

func (n *RecordingNotifier) NotifyStageCompleted(_ context.Context, pipelineID, videoID, stageName string, progressPercentage float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, Notification{Kind: MessageStageCompleted, PipelineID: pipelineID, VideoID: videoID, StageName: stageName, ProgressPercentage: progressPercentage})
}

func (n *RecordingNotifier) NotifyStageFailed(_ context.Context, pipelineID, videoID, stageName, errorMessage string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, Notification{Kind: MessageStageFailed, PipelineID: pipelineID, VideoID: videoID, StageName: stageName, ErrorMessage: errorMessage})
}

func (n *RecordingNotifier) Calls() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.calls...)
}

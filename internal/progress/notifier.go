// Package progress defines the pluggable, composable ProgressNotifier
// (spec.md §4.6) and its implementations.
package progress

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Notifier pushes stage-lifecycle notifications to external observers.
// Every method is fire-and-forget and may fail silently per-observer.
type Notifier interface {
	NotifyStageStarted(ctx context.Context, pipelineID, videoID, stageName string)
	NotifyStageCompleted(ctx context.Context, pipelineID, videoID, stageName string, progressPercentage float64)
	NotifyStageFailed(ctx context.Context, pipelineID, videoID, stageName, errorMessage string)
}

// MessageType enumerates the envelope's `type` field (spec.md §4.6/§6).
type MessageType string

const (
	MessageStageStarted   MessageType = "stage_started"
	MessageStageCompleted MessageType = "stage_completed"
	MessageStageFailed    MessageType = "stage_failed"
	MessageConnection     MessageType = "connection"
	MessagePong           MessageType = "pong"
)

// Envelope is the message broadcast to connected observers.
type Envelope struct {
	Type               MessageType `json:"type"`
	PipelineID         string      `json:"pipelineId"`
	VideoID            string      `json:"videoId"`
	StageName          string      `json:"stageName,omitempty"`
	ProgressPercentage *float64    `json:"progressPercentage,omitempty"`
	ErrorMessage       string      `json:"errorMessage,omitempty"`
	Timestamp          string      `json:"timestamp"`
	Status             string      `json:"status,omitempty"`
	Message             string      `json:"message,omitempty"`
}

// Composite fans out to every child notifier concurrently; one child's
// failure (panic or otherwise) must never block or sink the others.
type Composite struct {
	Children []Notifier
}

func NewComposite(children ...Notifier) *Composite {
	return &Composite{Children: children}
}

func (c *Composite) NotifyStageStarted(ctx context.Context, pipelineID, videoID, stageName string) {
	var eg errgroup.Group
	for _, child := range c.Children {
		child := child
		eg.Go(c.safe(func() { child.NotifyStageStarted(ctx, pipelineID, videoID, stageName) }))
	}
	_ = eg.Wait()
}

func (c *Composite) NotifyStageCompleted(ctx context.Context, pipelineID, videoID, stageName string, progressPercentage float64) {
	var eg errgroup.Group
	for _, child := range c.Children {
		child := child
		eg.Go(c.safe(func() { child.NotifyStageCompleted(ctx, pipelineID, videoID, stageName, progressPercentage) }))
	}
	_ = eg.Wait()
}

func (c *Composite) NotifyStageFailed(ctx context.Context, pipelineID, videoID, stageName, errorMessage string) {
	var eg errgroup.Group
	for _, child := range c.Children {
		child := child
		eg.Go(c.safe(func() { child.NotifyStageFailed(ctx, pipelineID, videoID, stageName, errorMessage) }))
	}
	_ = eg.Wait()
}

// safe wraps fn so a panicking child is recovered in its own goroutine
// without cancelling the errgroup or failing the others' dispatch.
func (c *Composite) safe(fn func()) func() error {
	return func() (err error) {
		defer func() { _ = recover() }()
		fn()
		return nil
	}
}

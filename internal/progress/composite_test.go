package progress

import (
	"context"
	"testing"
)

// panicCallNotifier panics on every call, exercising Composite's per-child
// isolation.
type panicCallNotifier struct{}

func (panicCallNotifier) NotifyStageStarted(context.Context, string, string, string) {
	panic("boom")
}

func (panicCallNotifier) NotifyStageCompleted(context.Context, string, string, string, float64) {
	panic("boom")
}

func (panicCallNotifier) NotifyStageFailed(context.Context, string, string, string, string) {
	panic("boom")
}

func TestComposite_ChildPanicDoesNotStopRemainingChildren(t *testing.T) {
	panicker := panicCallNotifier{}
	recorder := NewRecordingNotifier()
	c := NewComposite(panicker, recorder)

	c.NotifyStageStarted(context.Background(), "p1", "v1", "decode")

	calls := recorder.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected recorder to still be invoked once, got %d calls", len(calls))
	}
	if calls[0].StageName != "decode" {
		t.Fatalf("unexpected call: %+v", calls[0])
	}
}

func TestComposite_FansOutToAllChildren(t *testing.T) {
	a := NewRecordingNotifier()
	b := NewRecordingNotifier()
	c := NewComposite(a, b)

	c.NotifyStageCompleted(context.Background(), "p1", "v1", "decode", 50.0)

	if len(a.Calls()) != 1 || len(b.Calls()) != 1 {
		t.Fatalf("expected both children to be notified, got a=%d b=%d", len(a.Calls()), len(b.Calls()))
	}
}

func TestComposite_NotifyStageFailedFansOut(t *testing.T) {
	a := NewRecordingNotifier()
	c := NewComposite(a)

	c.NotifyStageFailed(context.Background(), "p1", "v1", "encode", "boom")

	calls := a.Calls()
	if len(calls) != 1 || calls[0].ErrorMessage != "boom" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}

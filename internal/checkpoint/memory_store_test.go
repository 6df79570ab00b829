package checkpoint

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_SaveLoadRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	blob := []byte(`{"pipelineId":"p1"}`)
	if err := s.Save(ctx, "p1", blob); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := s.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected checkpoint to be found")
	}
	if string(got) != string(blob) {
		t.Fatalf("got %q, want %q", got, blob)
	}
}

func TestMemoryStore_LoadMissingReturnsNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.Load(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected not found")
	}
}

func TestMemoryStore_SaveIsolatesCallerBuffer(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	blob := []byte(`{"a":1}`)
	if err := s.Save(ctx, "p1", blob); err != nil {
		t.Fatalf("Save: %v", err)
	}
	blob[0] = 'X'

	got, _, err := s.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("mutation leaked into stored blob: %q", got)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Save(ctx, "p1", []byte("x"))
	if err := s.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, _ := s.Load(ctx, "p1")
	if ok {
		t.Fatal("expected checkpoint to be gone after delete")
	}
}

func TestMemoryStore_List(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Save(ctx, "p1", []byte("x"))
	_ = s.Save(ctx, "p2", []byte("y"))

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
}

func TestMemoryStore_ExpiredEntryIsEvictedOnLoad(t *testing.T) {
	s := NewMemoryStore()
	s.ttl = time.Millisecond
	base := time.Now()
	s.now = func() time.Time { return base }

	if err := s.Save(context.Background(), "p1", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s.now = func() time.Time { return base.Add(time.Hour) }
	_, ok, err := s.Load(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected expired entry to be treated as missing")
	}
}

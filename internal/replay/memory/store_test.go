package memory

import (
	"context"
	"fmt"
	"testing"

	"httpcore/internal/core"
	"httpcore/internal/replay"
)

func TestAppendAndAfter(t *testing.T) {
	s := NewStore(&replay.Config{Capacity: 16})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ev := &core.SSEEvent{ID: fmt.Sprintf("%d", i), Data: fmt.Sprintf("event %d", i)}
		if err := s.Append(ctx, "/events", ev); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := s.After(ctx, "/events", "1")
	if err != nil {
		t.Fatalf("After failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events after id 1, got %d", len(got))
	}
	if got[0].ID != "2" || got[1].ID != "3" {
		t.Errorf("wrong events returned: %v, %v", got[0], got[1])
	}
}

func TestAfterUnknownID(t *testing.T) {
	s := NewStore(&replay.Config{Capacity: 16})
	ctx := context.Background()

	s.Append(ctx, "/events", &core.SSEEvent{ID: "1", Data: "a"})
	s.Append(ctx, "/events", &core.SSEEvent{ID: "2", Data: "b"})

	// An unknown ID means the client's history is gone; everything
	// buffered is replayed.
	got, _ := s.After(ctx, "/events", "nope")
	if len(got) != 2 {
		t.Errorf("expected full buffer for unknown id, got %d events", len(got))
	}

	got, _ = s.After(ctx, "/events", "")
	if len(got) != 2 {
		t.Errorf("expected full buffer for empty id, got %d events", len(got))
	}
}

func TestAfterLastID(t *testing.T) {
	s := NewStore(&replay.Config{Capacity: 16})
	ctx := context.Background()

	s.Append(ctx, "/events", &core.SSEEvent{ID: "1", Data: "a"})

	got, _ := s.After(ctx, "/events", "1")
	if len(got) != 0 {
		t.Errorf("expected no events after the newest id, got %d", len(got))
	}
}

func TestEviction(t *testing.T) {
	s := NewStore(&replay.Config{Capacity: 3})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		s.Append(ctx, "/events", &core.SSEEvent{ID: fmt.Sprintf("%d", i), Data: "x"})
	}

	got, _ := s.After(ctx, "/events", "")
	if len(got) != 3 {
		t.Fatalf("expected capacity 3, got %d events", len(got))
	}
	if got[0].ID != "3" || got[2].ID != "5" {
		t.Errorf("expected oldest events evicted, got ids %s..%s", got[0].ID, got[2].ID)
	}
}

func TestStreamsIsolated(t *testing.T) {
	s := NewStore(&replay.Config{Capacity: 16})
	ctx := context.Background()

	s.Append(ctx, "/a", &core.SSEEvent{ID: "1", Data: "a"})
	s.Append(ctx, "/b", &core.SSEEvent{ID: "1", Data: "b"})

	got, _ := s.After(ctx, "/a", "")
	if len(got) != 1 || got[0].Data != "a" {
		t.Errorf("stream /a polluted: %v", got)
	}
}

func TestAfterReturnsCopies(t *testing.T) {
	s := NewStore(&replay.Config{Capacity: 16})
	ctx := context.Background()

	s.Append(ctx, "/events", &core.SSEEvent{ID: "1", Data: "original"})

	got, _ := s.After(ctx, "/events", "")
	got[0].Data = "mutated"

	again, _ := s.After(ctx, "/events", "")
	if again[0].Data != "original" {
		t.Error("store must hand out copies, not shared events")
	}
}

package redis

import (
	"context"
	"testing"

	"httpcore/internal/core"
	"httpcore/internal/replay"
)

// fakeClient backs the store with an in-memory list per key.
type fakeClient struct {
	lists  map[string][]string
	closed bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{lists: make(map[string][]string)}
}

func (c *fakeClient) RPush(_ context.Context, key string, values ...interface{}) error {
	for _, v := range values {
		switch val := v.(type) {
		case []byte:
			c.lists[key] = append(c.lists[key], string(val))
		case string:
			c.lists[key] = append(c.lists[key], val)
		}
	}
	return nil
}

func (c *fakeClient) LTrim(_ context.Context, key string, start, stop int64) error {
	list := c.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if start < 0 {
		start = 0
	}
	if stop < 0 {
		stop += n
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		c.lists[key] = nil
		return nil
	}
	c.lists[key] = list[start : stop+1]
	return nil
}

func (c *fakeClient) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	list := c.lists[key]
	n := int64(len(list))
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	return list[start : stop+1], nil
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func TestRedisAppendAndAfter(t *testing.T) {
	client := newFakeClient()
	s := NewStore(client, &replay.Config{Capacity: 16})
	ctx := context.Background()

	events := []*core.SSEEvent{
		{ID: "1", Type: "tick", Data: "a"},
		{ID: "2", Data: "b"},
		{ID: "3", Data: "c", Retry: 500},
	}
	for _, ev := range events {
		if err := s.Append(ctx, "/events", ev); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := s.After(ctx, "/events", "1")
	if err != nil {
		t.Fatalf("After failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].ID != "2" || got[1].ID != "3" {
		t.Errorf("wrong events: %+v", got)
	}
	if got[1].Retry != 500 {
		t.Errorf("retry not round-tripped: %+v", got[1])
	}
}

func TestRedisTrimsToCapacity(t *testing.T) {
	client := newFakeClient()
	s := NewStore(client, &replay.Config{Capacity: 2})
	ctx := context.Background()

	s.Append(ctx, "/events", &core.SSEEvent{ID: "1", Data: "a"})
	s.Append(ctx, "/events", &core.SSEEvent{ID: "2", Data: "b"})
	s.Append(ctx, "/events", &core.SSEEvent{ID: "3", Data: "c"})

	got, _ := s.After(ctx, "/events", "")
	if len(got) != 2 {
		t.Fatalf("expected list trimmed to 2, got %d", len(got))
	}
	if got[0].ID != "2" {
		t.Errorf("expected oldest entry trimmed, got id %s", got[0].ID)
	}
}

func TestRedisSkipsUnreadableRecords(t *testing.T) {
	client := newFakeClient()
	client.lists["sse:replay:/events"] = []string{"not json", `{"id":"1","data":"ok"}`}
	s := NewStore(client, &replay.Config{})

	got, err := s.After(context.Background(), "/events", "")
	if err != nil {
		t.Fatalf("After failed: %v", err)
	}
	if len(got) != 1 || got[0].Data != "ok" {
		t.Errorf("expected the readable record only, got %+v", got)
	}
}

func TestRedisClose(t *testing.T) {
	client := newFakeClient()
	s := NewStore(client, &replay.Config{})

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !client.closed {
		t.Error("store must close the underlying client")
	}
}

package sse

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"httpcore/internal/core"
	"httpcore/pkg/errors"
)

// fakeConn is a connection double recording every chunk written to it.
// writeErr fails writes; writeOK lets that many writes through first.
type fakeConn struct {
	mu       sync.Mutex
	writes   [][]byte
	flushes  int
	closes   int
	state    core.State
	writeErr error
	writeOK  int
	flushErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{state: core.StateActive}
}

func (c *fakeConn) WriteChunk(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil && len(c.writes) >= c.writeOK {
		return c.writeErr
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	c.writes = append(c.writes, buf)
	return nil
}

func (c *fakeConn) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flushErr != nil {
		return c.flushErr
	}
	c.flushes++
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	c.state = core.StateClosed
	return nil
}

func (c *fakeConn) IsAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == core.StateActive || c.state == core.StateStreaming
}

func (c *fakeConn) State() core.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) StartStreaming() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case core.StateActive:
		c.state = core.StateStreaming
		return nil
	case core.StateStreaming:
		return errors.NewError(errors.ErrorTypeInternal, "connection already streaming")
	default:
		return errors.NewError(errors.ErrorTypeClosed, "connection closed")
	}
}

func (c *fakeConn) written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Join(c.writes, nil)
}

// fakeStore records appends and serves a fixed replay window.
type fakeStore struct {
	mu       sync.Mutex
	appended []*core.SSEEvent
	events   []*core.SSEEvent
	afterErr error
}

func (s *fakeStore) Append(_ context.Context, _ string, ev *core.SSEEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, ev)
	return nil
}

func (s *fakeStore) After(_ context.Context, _ string, lastID string) ([]*core.SSEEvent, error) {
	if s.afterErr != nil {
		return nil, s.afterErr
	}
	for i, ev := range s.events {
		if ev.ID == lastID {
			return s.events[i+1:], nil
		}
	}
	return s.events, nil
}

func (s *fakeStore) Close() error { return nil }

func TestWriterSendEvent(t *testing.T) {
	c := newFakeConn()
	w := NewWriter(NewStreamHandle(c), StartOptions{})

	if err := w.SendEvent(&core.SSEEvent{ID: "1", Data: "hello"}); err != nil {
		t.Fatalf("SendEvent failed: %v", err)
	}

	want := "id: 1\ndata: hello\n\n"
	if got := string(c.written()); got != want {
		t.Errorf("wrote %q, want %q", got, want)
	}
	if c.flushes != 1 {
		t.Errorf("expected 1 flush per event, got %d", c.flushes)
	}
	if w.EventCount() != 1 {
		t.Errorf("expected event count 1, got %d", w.EventCount())
	}
}

func TestWriterSendKeepAlive(t *testing.T) {
	c := newFakeConn()
	w := NewWriter(NewStreamHandle(c), StartOptions{})

	if err := w.SendKeepAlive(); err != nil {
		t.Fatalf("SendKeepAlive failed: %v", err)
	}
	if got := string(c.written()); got != ":heartbeat\n\n" {
		t.Errorf("wrote %q, want heartbeat comment", got)
	}
	if w.EventCount() != 0 {
		t.Error("keepalives must not count as events")
	}
}

func TestWriterErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		connErr  error
		wantType errors.ErrorType
	}{
		{
			name:     "closed connection",
			connErr:  errors.NewError(errors.ErrorTypeClosed, "connection closed"),
			wantType: errors.ErrorTypeClosed,
		},
		{
			name:     "full queue",
			connErr:  errors.NewError(errors.ErrorTypeBackpressure, "write queue full"),
			wantType: errors.ErrorTypeBackpressure,
		},
		{
			name:     "transport failure",
			connErr:  errors.NewError(errors.ErrorTypeTransport, "broken pipe"),
			wantType: errors.ErrorTypeTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeConn()
			c.writeErr = tt.connErr
			w := NewWriter(NewStreamHandle(c), StartOptions{})

			err := w.SendEvent(&core.SSEEvent{Data: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.IsType(err, tt.wantType) {
				t.Errorf("expected %s error, got %v", tt.wantType, err)
			}
			if w.EventCount() != 0 {
				t.Error("failed sends must not count")
			}
		})
	}
}

func TestWriterClosed(t *testing.T) {
	c := newFakeConn()
	w := NewWriter(NewStreamHandle(c), StartOptions{})

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	err := w.SendEvent(&core.SSEEvent{Data: "x"})
	if !errors.IsType(err, errors.ErrorTypeWriterClosed) {
		t.Errorf("expected writer closed error, got %v", err)
	}
	err = w.SendKeepAlive()
	if !errors.IsType(err, errors.ErrorTypeWriterClosed) {
		t.Errorf("expected writer closed error, got %v", err)
	}
}

func TestWriterCloseIdempotent(t *testing.T) {
	c := newFakeConn()
	w := NewWriter(NewStreamHandle(c), StartOptions{})

	w.Close()
	w.Close()
	w.Close()

	if c.closes != 1 {
		t.Errorf("expected underlying connection closed once, got %d", c.closes)
	}
}

func TestWriterRecordsToStore(t *testing.T) {
	c := newFakeConn()
	store := &fakeStore{}
	w := NewWriter(NewStreamHandle(c), StartOptions{Stream: "/events", Store: store})

	w.SendEvent(&core.SSEEvent{ID: "1", Data: "recorded"})
	w.SendEvent(&core.SSEEvent{Data: "no id, not recorded"})

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.appended) != 1 {
		t.Fatalf("expected 1 recorded event, got %d", len(store.appended))
	}
	if store.appended[0].ID != "1" {
		t.Errorf("recorded wrong event: %+v", store.appended[0])
	}
}

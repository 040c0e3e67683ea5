// Package memory implements the replay store as per-stream in-process
// ring buffers.
package memory

import (
	"context"
	"sync"

	"httpcore/internal/core"
	"httpcore/internal/replay"
)

// Store implements replay.Store with a bounded slice per stream.
type Store struct {
	mu       sync.RWMutex
	streams  map[string][]*core.SSEEvent
	capacity int
}

// NewStore creates a memory store.
func NewStore(config *replay.Config) *Store {
	return &Store{
		streams:  make(map[string][]*core.SSEEvent),
		capacity: config.CapacityOrDefault(),
	}
}

// Append records one event, evicting the oldest when the stream is full.
func (s *Store) Append(_ context.Context, stream string, ev *core.SSEEvent) error {
	cp := *ev

	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.streams[stream]
	if len(events) >= s.capacity {
		n := copy(events, events[len(events)-s.capacity+1:])
		events = events[:n]
	}
	s.streams[stream] = append(events, &cp)
	return nil
}

// After returns the events recorded after lastID, oldest first. An empty
// or unknown lastID yields every buffered event.
func (s *Store) After(_ context.Context, stream, lastID string) ([]*core.SSEEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.streams[stream]
	start := 0
	if lastID != "" {
		for i, ev := range events {
			if ev.ID == lastID {
				start = i + 1
				break
			}
		}
	}

	out := make([]*core.SSEEvent, 0, len(events)-start)
	for _, ev := range events[start:] {
		cp := *ev
		out = append(out, &cp)
	}
	return out, nil
}

// Close clears the buffers.
func (s *Store) Close() error {
	s.mu.Lock()
	s.streams = make(map[string][]*core.SSEEvent)
	s.mu.Unlock()
	return nil
}

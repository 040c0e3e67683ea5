// Package replay buffers sent events per stream so a client reconnecting
// with Last-Event-ID can be caught up before new events flow. Only events
// carrying an ID are recorded; events without one cannot be referenced by
// a reconnect and are not buffered.
package replay

import (
	"context"

	"httpcore/internal/core"
)

// Store is the pluggable event buffer behind stream resumption.
type Store interface {
	// Append records one sent event for the stream.
	Append(ctx context.Context, stream string, ev *core.SSEEvent) error
	// After returns the buffered events that follow lastID, oldest
	// first. When lastID is unknown (already evicted) every buffered
	// event is returned, which is the best a bounded buffer can do.
	After(ctx context.Context, stream, lastID string) ([]*core.SSEEvent, error)
	// Close releases the store's resources.
	Close() error
}

// Config holds store construction inputs shared by the backends.
type Config struct {
	// Capacity caps the number of events buffered per stream; older
	// events are evicted first.
	Capacity int
}

// DefaultCapacity is the per-stream event cap used when none is configured.
const DefaultCapacity = 256

// CapacityOrDefault returns the configured capacity or the default.
func (c *Config) CapacityOrDefault() int {
	if c == nil || c.Capacity <= 0 {
		return DefaultCapacity
	}
	return c.Capacity
}

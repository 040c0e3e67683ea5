// Package core defines the contracts shared between the connection
// backends, the SSE layer, and the embedding application.
package core

// State tracks a connection through its lifecycle. Once a connection
// reaches StateStreaming it never returns to the request/response path;
// StateClosed is terminal.
type State int

const (
	StateInit State = iota
	StateActive
	StateStreaming
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateActive:
		return "active"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the transport-agnostic write surface a connection exposes once
// the adapter has accepted it. Both backends implement it; callers never
// branch on which one they hold.
type Conn interface {
	// WriteChunk queues data for delivery. It returns a backpressure
	// error when the bounded write queue would overflow (the queue is
	// left unchanged) and a closed error after Close.
	WriteChunk(p []byte) error
	// Flush forces queued bytes to the transport instead of waiting for
	// batching. No-op when the queue is empty.
	Flush() error
	// Close is idempotent. Remaining queued bytes are discarded rather
	// than drained.
	Close() error
	// IsAlive reports whether the connection is active or streaming.
	IsAlive() bool
	// State returns the current lifecycle state.
	State() State
}

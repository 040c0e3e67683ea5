// Package conn holds the connection state machine and bounded write queue
// shared by the event-loop and blocking backends. Keeping both backends on
// the same Base guarantees they expose identical observable states for the
// same sequence of application calls.
package conn

import (
	"sync"

	"httpcore/internal/core"
	"httpcore/pkg/errors"
)

const (
	// DefaultReadBufferSize is one read completion's worth of inbound
	// data. The buffer is overwritten each read, never grown; a request
	// head that does not fit is a protocol error.
	DefaultReadBufferSize = 8 << 10

	// DefaultWriteQueueLimit caps the total bytes pending in a
	// connection's write queue.
	DefaultWriteQueueLimit = 64 << 10
)

// Base carries the lifecycle state and write queue of one connection.
// State and queue are guarded by one mutex so an SSE writer held on an
// application goroutine can safely push while the adapter owns the
// transport.
type Base struct {
	mu      sync.Mutex
	state   core.State
	queue   *WriteQueue
	onClose func()
}

// NewBase creates a Base in the init state.
func NewBase(queueLimit int) *Base {
	return &Base{
		state: core.StateInit,
		queue: NewWriteQueue(queueLimit),
	}
}

// OnClose registers a callback invoked exactly once when the connection
// reaches the closed state. Used by adapters to deregister the connection.
func (b *Base) OnClose(fn func()) {
	b.mu.Lock()
	b.onClose = fn
	b.mu.Unlock()
}

// State returns the current lifecycle state.
func (b *Base) State() core.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsAlive reports whether the connection is active or streaming.
func (b *Base) IsAlive() bool {
	s := b.State()
	return s == core.StateActive || s == core.StateStreaming
}

// Activate moves init -> active after the accept completes.
func (b *Base) Activate() {
	b.mu.Lock()
	if b.state == core.StateInit {
		b.state = core.StateActive
	}
	b.mu.Unlock()
}

// StartStreaming moves active -> streaming. Streaming is one-way: there is
// no transition back to the request/response path.
func (b *Base) StartStreaming() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case core.StateActive:
		b.state = core.StateStreaming
		return nil
	case core.StateStreaming:
		return errors.NewError(errors.ErrorTypeInternal, "connection already streaming")
	default:
		return errors.NewError(errors.ErrorTypeClosed, "connection closed").
			WithDetail("state", b.state.String())
	}
}

// BeginClose moves the connection into closing and discards the remaining
// write queue (best-effort delivery). It returns true for the first caller
// and false when the connection is already closing or closed, making close
// idempotent across goroutines.
func (b *Base) BeginClose() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == core.StateClosing || b.state == core.StateClosed {
		return false
	}
	b.state = core.StateClosing
	b.queue.Drop()
	return true
}

// FinishClose marks the connection closed and fires the close callback.
// The callback runs outside the lock.
func (b *Base) FinishClose() {
	b.mu.Lock()
	if b.state == core.StateClosed {
		b.mu.Unlock()
		return
	}
	b.state = core.StateClosed
	fn := b.onClose
	b.onClose = nil
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Enqueue validates the connection state and appends p to the write queue.
// It fails with a closed error outside active/streaming and a backpressure
// error when the queue cap would be exceeded (queue unchanged).
func (b *Base) Enqueue(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != core.StateActive && b.state != core.StateStreaming {
		return errors.NewError(errors.ErrorTypeClosed, "connection closed").
			WithDetail("state", b.state.String())
	}
	return b.queue.Push(p)
}

// NextChunk pops the oldest queued chunk.
func (b *Base) NextChunk() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.Pop()
}

// QueuedBytes returns the total bytes currently queued.
func (b *Base) QueuedBytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.Bytes()
}

package sse

import (
	"httpcore/internal/core"
)

// StreamHandle is a non-owning reference to a live connection, restricted
// to the chunked-write surface. Once a connection enters streaming mode
// the rest of the system goes through a handle and never touches the
// connection internals again. The handle is valid only while the
// connection is alive; operations after close return a closed error.
type StreamHandle struct {
	conn core.Conn
}

// NewStreamHandle wraps a connection.
func NewStreamHandle(c core.Conn) *StreamHandle {
	return &StreamHandle{conn: c}
}

// Write queues one chunk on the connection.
func (h *StreamHandle) Write(p []byte) error {
	return h.conn.WriteChunk(p)
}

// Flush pushes queued bytes to the transport.
func (h *StreamHandle) Flush() error {
	return h.conn.Flush()
}

// Close closes the underlying connection.
func (h *StreamHandle) Close() error {
	return h.conn.Close()
}

// IsAlive reports whether the connection can still be written.
func (h *StreamHandle) IsAlive() bool {
	return h.conn.IsAlive()
}

package conn

import (
	"httpcore/pkg/errors"
)

// WriteQueue is an ordered sequence of pending outbound chunks with a hard
// cap on total queued bytes. A push that would exceed the cap fails with a
// backpressure error and leaves the queue unchanged; the queue never grows
// past its limit and never drops data silently.
type WriteQueue struct {
	chunks [][]byte
	bytes  int
	limit  int
}

// NewWriteQueue creates a queue capped at limit total bytes.
func NewWriteQueue(limit int) *WriteQueue {
	if limit <= 0 {
		limit = DefaultWriteQueueLimit
	}
	return &WriteQueue{limit: limit}
}

// Push appends a copy of p. It returns a backpressure error when the
// queued byte total plus len(p) would exceed the cap.
func (q *WriteQueue) Push(p []byte) error {
	if q.bytes+len(p) > q.limit {
		return errors.NewError(errors.ErrorTypeBackpressure, "write queue full").
			WithDetail("queued", q.bytes).
			WithDetail("chunk", len(p)).
			WithDetail("limit", q.limit)
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	q.chunks = append(q.chunks, buf)
	q.bytes += len(buf)
	return nil
}

// Pop removes and returns the oldest chunk. ok is false when the queue is
// empty.
func (q *WriteQueue) Pop() (chunk []byte, ok bool) {
	if len(q.chunks) == 0 {
		return nil, false
	}
	chunk = q.chunks[0]
	q.chunks[0] = nil
	q.chunks = q.chunks[1:]
	q.bytes -= len(chunk)
	return chunk, true
}

// Bytes returns the total queued byte count.
func (q *WriteQueue) Bytes() int { return q.bytes }

// Len returns the number of queued chunks.
func (q *WriteQueue) Len() int { return len(q.chunks) }

// Drop discards all queued chunks.
func (q *WriteQueue) Drop() {
	q.chunks = nil
	q.bytes = 0
}

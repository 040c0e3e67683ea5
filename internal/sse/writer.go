package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"httpcore/internal/core"
	"httpcore/internal/replay"
	"httpcore/pkg/errors"
)

const (
	replayAppendTimeout = 2 * time.Second
	replayFetchTimeout  = 2 * time.Second
)

// Writer owns a StreamHandle and sequences event formatting, writing, and
// flushing. SSE favors per-event delivery latency over batching, so every
// send flushes immediately. Writer methods are safe to call from one
// application goroutine at a time; the internal lock serializes sends
// against close.
type Writer struct {
	mu     sync.Mutex
	handle *StreamHandle
	logger *slog.Logger
	closed bool
	count  uint64

	// ready is closed once any reconnect replay has finished. Sends and
	// Close wait on it, so replayed events always precede new ones.
	ready chan struct{}

	stream string
	store  replay.Store

	eventsSent    prometheus.Counter
	streamsActive prometheus.Gauge
}

// NewWriter creates a writer over the given handle. Metrics and the replay
// store are optional.
func NewWriter(handle *StreamHandle, opts StartOptions) *Writer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ready := make(chan struct{})
	close(ready)
	return &Writer{
		handle:        handle,
		logger:        logger.With("component", "sse-writer"),
		ready:         ready,
		stream:        opts.Stream,
		store:         opts.Store,
		eventsSent:    opts.EventsSent,
		streamsActive: opts.StreamsActive,
	}
}

// beginReplay swaps in an open gate. Called only between construction and
// the writer escaping to other goroutines.
func (w *Writer) beginReplay() {
	w.ready = make(chan struct{})
}

// replayMissed catches a reconnecting client up, then opens the gate for
// regular sends. The store read and the event writes both block, so this
// never runs on a reactor goroutine; callers that need ordering get it
// from the gate instead.
func (w *Writer) replayMissed(opts StartOptions) {
	defer close(w.ready)

	ctx, cancel := context.WithTimeout(context.Background(), replayFetchTimeout)
	missed, err := opts.Store.After(ctx, opts.Stream, opts.LastEventID)
	cancel()
	if err != nil {
		w.logger.Warn("failed to load replay events",
			"stream", opts.Stream,
			"last_event_id", opts.LastEventID,
			"error", err)
		return
	}

	for _, ev := range missed {
		w.mu.Lock()
		err := w.sendLocked(ev, false)
		w.mu.Unlock()
		if err == nil {
			continue
		}

		// Continuing after a failed replay would hand the client a gap;
		// closing forces a reconnect that starts the catch-up over.
		w.logger.Warn("replay aborted, closing stream",
			"stream", opts.Stream,
			"last_event_id", opts.LastEventID,
			"error", err)
		w.mu.Lock()
		alreadyClosed := w.closed
		w.closed = true
		w.mu.Unlock()
		if !alreadyClosed {
			if w.streamsActive != nil {
				w.streamsActive.Dec()
			}
			w.handle.Close()
		}
		return
	}
}

// SendEvent formats ev, writes it through the handle, and flushes. Errors
// from the connection are translated: a closed connection surfaces as a
// closed error ("connection lost"), a full write queue as backpressure,
// anything else as a transport write error. Nothing is retried; the caller
// decides whether to drop the event, wait, or close the stream.
func (w *Writer) SendEvent(ev *core.SSEEvent) error {
	return w.send(ev, true)
}

func (w *Writer) send(ev *core.SSEEvent, record bool) error {
	<-w.ready
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sendLocked(ev, record)
}

func (w *Writer) sendLocked(ev *core.SSEEvent, record bool) error {
	if w.closed {
		return errors.NewError(errors.ErrorTypeWriterClosed, "event writer is closed")
	}

	payload := FormatEvent(ev)
	if err := w.handle.Write(payload); err != nil {
		return mapWriteError(err)
	}
	if err := w.handle.Flush(); err != nil {
		return mapWriteError(err)
	}

	w.count++
	if w.eventsSent != nil {
		w.eventsSent.Inc()
	}

	if record && w.store != nil && ev.ID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), replayAppendTimeout)
		defer cancel()
		if err := w.store.Append(ctx, w.stream, ev); err != nil {
			w.logger.Warn("failed to record event for replay",
				"stream", w.stream,
				"id", ev.ID,
				"error", err)
		}
	}
	return nil
}

// SendKeepAlive writes a comment line through the same path as events,
// for idle-timeout avoidance.
func (w *Writer) SendKeepAlive() error {
	<-w.ready
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.NewError(errors.ErrorTypeWriterClosed, "event writer is closed")
	}
	if err := w.handle.Write(keepAlivePayload); err != nil {
		return mapWriteError(err)
	}
	if err := w.handle.Flush(); err != nil {
		return mapWriteError(err)
	}
	return nil
}

// Close ends the stream. Idempotent: the underlying connection is closed
// exactly once across all calls and repeated calls are no-ops.
func (w *Writer) Close() error {
	<-w.ready
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.streamsActive != nil {
		w.streamsActive.Dec()
	}
	return w.handle.Close()
}

// EventCount returns the number of events successfully sent.
func (w *Writer) EventCount() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// mapWriteError translates connection-level errors into the writer's
// error vocabulary.
func mapWriteError(err error) error {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeClosed:
		return errors.NewError(errors.ErrorTypeClosed, "connection lost").WithCause(err)
	case errors.ErrorTypeBackpressure:
		return errors.NewError(errors.ErrorTypeBackpressure, "backpressure detected").WithCause(err)
	default:
		return errors.NewError(errors.ErrorTypeTransport, "event write failed").WithCause(err)
	}
}

package sse

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"httpcore/internal/core"
	"httpcore/internal/replay"
	"httpcore/internal/wire"
	"httpcore/pkg/errors"
	"httpcore/pkg/metrics"
)

// ConnStarter is a connection that can flip into streaming mode. Both
// backends satisfy it.
type ConnStarter interface {
	core.Conn
	StartStreaming() error
}

// StartOptions carries the optional collaborators wired into a stream at
// start time.
type StartOptions struct {
	// Stream is the replay stream key; adapters default it to the
	// request path.
	Stream string
	// LastEventID is the client's Last-Event-ID header, if any.
	LastEventID string
	// Store, when set, records sent events and replays missed ones on
	// reconnect.
	Store  replay.Store
	Logger *slog.Logger

	EventsSent    prometheus.Counter
	StreamsActive prometheus.Gauge
	StreamsTotal  prometheus.Counter
}

// AdapterOptions builds the StartOptions an adapter hands to new streams,
// pre-binding the metric series for its backend label.
func AdapterOptions(m *metrics.Metrics, adapter string, store replay.Store, logger *slog.Logger) StartOptions {
	opts := StartOptions{Store: store, Logger: logger}
	if m != nil {
		opts.EventsSent = m.SSEEventsSent.WithLabelValues(adapter)
		opts.StreamsActive = m.SSEStreamsActive.WithLabelValues(adapter)
		opts.StreamsTotal = m.SSEStreamsTotal.WithLabelValues(adapter)
	}
	return opts
}

// Streamer implements core.Streamer for one request on one connection.
// The first StartStream call flips the connection into streaming mode;
// repeated calls return the same writer.
type Streamer struct {
	conn   ConnStarter
	req    *wire.Request
	opts   StartOptions
	writer *Writer
}

// NewStreamer creates the streamer an adapter passes to the handler.
func NewStreamer(c ConnStarter, req *wire.Request, opts StartOptions) *Streamer {
	return &Streamer{conn: c, req: req, opts: opts}
}

// StartStream transitions the connection to streaming, sends the SSE
// response head, replays any missed events for reconnecting clients, and
// returns the writer the application keeps for the rest of the
// connection's life.
func (s *Streamer) StartStream() (core.SSEWriter, error) {
	if s.writer != nil {
		return s.writer, nil
	}

	if err := s.conn.StartStreaming(); err != nil {
		return nil, err
	}

	opts := s.opts
	if opts.Stream == "" {
		opts.Stream = s.req.Path
	}
	if opts.LastEventID == "" {
		opts.LastEventID = s.req.Header("Last-Event-ID")
	}

	w, err := Start(s.conn, opts)
	if err != nil {
		// The connection already committed to streaming and cannot fall
		// back to the response path, so it goes down instead.
		s.conn.Close()
		return nil, err
	}
	s.writer = w
	return w, nil
}

// Started reports whether the handler switched this connection into
// streaming mode.
func (s *Streamer) Started() bool { return s.writer != nil }

// Writer returns the writer created by StartStream, or nil.
func (s *Streamer) Writer() *Writer { return s.writer }

// Start writes the SSE response head on an already-streaming connection
// and hands back a writer. Exposed for adapters; applications go through
// core.Streamer.
func Start(c core.Conn, opts StartOptions) (*Writer, error) {
	head := wire.SerializeHead(preamble())
	if err := c.WriteChunk(head); err != nil {
		return nil, errors.Wrap(err, "failed to send stream head")
	}
	if err := c.Flush(); err != nil {
		return nil, errors.Wrap(err, "failed to flush stream head")
	}

	handle := NewStreamHandle(c)
	w := NewWriter(handle, opts)

	if opts.StreamsActive != nil {
		opts.StreamsActive.Inc()
	}
	if opts.StreamsTotal != nil {
		opts.StreamsTotal.Inc()
	}

	if opts.Store != nil && opts.LastEventID != "" {
		// Replay happens off the caller's goroutine: on the event-loop
		// backend StartStream runs on the reactor, and a long catch-up
		// performed there would stall every connection on the loop. The
		// writer's gate keeps new sends ordered after the replayed tail.
		w.beginReplay()
		go w.replayMissed(opts)
	}
	return w, nil
}

// preamble is the response head sent once before any events.
func preamble() *wire.Response {
	resp := wire.NewResponse(200)
	resp.SetHeader("Content-Type", "text/event-stream")
	resp.SetHeader("Cache-Control", "no-cache")
	resp.SetHeader("Connection", "keep-alive")
	resp.SetHeader("X-Accel-Buffering", "no")
	return resp
}

// Package blocking drives one connection per goroutine: reads, parsing,
// handler dispatch, and writes all happen synchronously on the
// connection's own goroutine. It is the simple, portable backend and must
// produce the same observable connection states and wire bytes as the
// event-loop backend for the same sequence of application calls.
package blocking

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"httpcore/internal/conn"
	"httpcore/internal/core"
	"httpcore/internal/replay"
	"httpcore/internal/sse"
	"httpcore/internal/wire"
	"httpcore/pkg/metrics"
)

const adapterLabel = "blocking"

// Config holds blocking adapter configuration.
type Config struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReadBufferSize  int    `yaml:"readBufferSize"`
	WriteQueueLimit int    `yaml:"writeQueueLimit"`
	MaxConnections  int    `yaml:"maxConnections"`
	KeepAlive       bool   `yaml:"keepAlive"`
}

// DefaultConfig returns default blocking adapter configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadBufferSize:  conn.DefaultReadBufferSize,
		WriteQueueLimit: conn.DefaultWriteQueueLimit,
		MaxConnections:  1024,
		KeepAlive:       true,
	}
}

// Adapter accepts connections and serves each on its own goroutine.
type Adapter struct {
	config  *Config
	handler core.Handler
	logger  *slog.Logger
	metrics *metrics.Metrics
	replay  replay.Store

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}

	sem chan struct{}
	wg  sync.WaitGroup
}

// New creates a new blocking adapter.
func New(config *Config, handler core.Handler, logger *slog.Logger) *Adapter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = conn.DefaultReadBufferSize
	}
	maxConns := config.MaxConnections
	if maxConns <= 0 {
		maxConns = 1024
	}
	return &Adapter{
		config:  config,
		handler: handler,
		logger:  logger.With("component", "blocking-adapter"),
		conns:   make(map[*Conn]struct{}),
		sem:     make(chan struct{}, maxConns),
	}
}

// WithMetrics sets the metrics for the adapter.
func (a *Adapter) WithMetrics(m *metrics.Metrics) *Adapter {
	a.metrics = m
	return a
}

// WithReplay sets the event replay store handed to new streams.
func (a *Adapter) WithReplay(store replay.Store) *Adapter {
	a.replay = store
	return a
}

// Start opens the listener and begins accepting connections.
func (a *Adapter) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.config.Host, a.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	a.logger.Info("starting server", "addr", ln.Addr().String())

	a.wg.Add(1)
	go a.acceptLoop(ctx)
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (a *Adapter) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Stop closes the listener, force-closes the remaining connections
// (streaming ones included), and waits for the serve goroutines.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	ln := a.listener
	a.listener = nil
	open := make([]*Conn, 0, len(a.conns))
	for c := range a.conns {
		open = append(open, c)
	}
	a.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, c := range open {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveConns returns the number of currently open connections.
func (a *Adapter) ActiveConns() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

// acceptLoop re-arms itself after every accept; accept failures are
// logged and never stop the loop.
func (a *Adapter) acceptLoop(ctx context.Context) {
	defer a.wg.Done()

	for {
		a.mu.Lock()
		ln := a.listener
		a.mu.Unlock()
		if ln == nil {
			return
		}

		nc, err := ln.Accept()
		if err != nil {
			if stderrors.Is(err, net.ErrClosed) {
				return
			}
			a.logger.Error("accept failed", "error", err)
			continue
		}

		a.sem <- struct{}{}
		a.wg.Add(1)
		go a.serve(ctx, nc)
	}
}

// serve owns one connection for its whole lifetime, except when a handler
// flips it into streaming mode and the SSE writer takes over.
func (a *Adapter) serve(ctx context.Context, nc net.Conn) {
	defer a.wg.Done()

	c := newConn(nc, a.config.WriteQueueLimit)
	if a.metrics != nil {
		c.bytesWritten = a.metrics.BytesWritten.WithLabelValues(adapterLabel)
		c.backpressure = a.metrics.BackpressureTotal.WithLabelValues(adapterLabel)
		a.metrics.ConnectionsTotal.WithLabelValues(adapterLabel).Inc()
		a.metrics.ConnectionsActive.WithLabelValues(adapterLabel).Inc()
	}

	a.mu.Lock()
	a.conns[c] = struct{}{}
	a.mu.Unlock()

	c.OnClose(func() {
		a.mu.Lock()
		delete(a.conns, c)
		a.mu.Unlock()
		// The connection slot frees on close, not when this goroutine
		// returns: a streaming connection outlives serve and must keep
		// counting against MaxConnections until the writer closes it.
		<-a.sem
		if a.metrics != nil {
			a.metrics.ConnectionsActive.WithLabelValues(adapterLabel).Dec()
		}
	})

	c.Activate()

	buf := make([]byte, a.config.ReadBufferSize)
	for {
		n, err := nc.Read(buf)
		if err != nil || n == 0 {
			// Peer-initiated close or transport error.
			c.Close()
			return
		}

		req, perr := wire.ParseRequest(buf[:n])
		if perr != nil {
			a.logger.Debug("malformed request", "remote", nc.RemoteAddr().String(), "error", perr)
			if a.metrics != nil {
				a.metrics.ProtocolErrors.WithLabelValues(adapterLabel).Inc()
			}
			// Best effort: the connection is going down either way.
			resp, _ := core.FinalizeResponse(nil, perr, &wire.Request{Proto: "HTTP/1.1"}, false)
			_ = c.WriteChunk(wire.SerializeResponse(resp))
			c.Close()
			return
		}

		st := sse.NewStreamer(c, req, sse.AdapterOptions(a.metrics, adapterLabel, a.replay, a.logger))
		resp, herr := a.handler(ctx, req, st)

		if st.Started() {
			// The connection now belongs to the event writer; this
			// goroutine is done with it.
			if herr != nil {
				a.logger.Error("handler error after stream start", "method", req.Method, "path", req.Path, "error", herr)
			}
			if a.metrics != nil {
				a.metrics.RequestsTotal.WithLabelValues(adapterLabel, req.Method, "stream").Inc()
			}
			return
		}

		if herr != nil {
			a.logger.Error("handler error", "method", req.Method, "path", req.Path, "error", herr)
		}
		resp, keep := core.FinalizeResponse(resp, herr, req, a.config.KeepAlive)

		if a.metrics != nil {
			a.metrics.RequestsTotal.WithLabelValues(adapterLabel, req.Method, strconv.Itoa(resp.StatusCode)).Inc()
		}

		if err := c.WriteChunk(wire.SerializeResponse(resp)); err != nil {
			c.Close()
			return
		}
		if !keep {
			c.Close()
			return
		}
	}
}

// Package eventloop drives many connections from a small fixed pool of
// reactors. Operations are submitted to the OS on helper goroutines and
// their results come back as typed completion records processed one at a
// time on the owning reactor, which keeps every connection's transitions
// single-threaded without locks on the hot path.
package eventloop

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"httpcore/internal/conn"
	"httpcore/internal/core"
	"httpcore/internal/replay"
	"httpcore/pkg/metrics"
)

const adapterLabel = "eventloop"

// Config holds event-loop adapter configuration.
type Config struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Loops           int    `yaml:"loops"`
	ReadBufferSize  int    `yaml:"readBufferSize"`
	WriteQueueLimit int    `yaml:"writeQueueLimit"`
	KeepAlive       bool   `yaml:"keepAlive"`
}

// DefaultConfig returns default event-loop adapter configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Loops:           1,
		ReadBufferSize:  conn.DefaultReadBufferSize,
		WriteQueueLimit: conn.DefaultWriteQueueLimit,
		KeepAlive:       true,
	}
}

// Adapter accepts connections and distributes them across its reactors.
type Adapter struct {
	config  *Config
	handler core.Handler
	logger  *slog.Logger
	metrics *metrics.Metrics
	replay  replay.Store

	mu       sync.Mutex
	listener net.Listener
	loops    []*loop

	next   atomic.Uint64
	connID atomic.Uint64
	active atomic.Int64
	wg     sync.WaitGroup
}

// New creates a new event-loop adapter.
func New(config *Config, handler core.Handler, logger *slog.Logger) *Adapter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Loops <= 0 {
		config.Loops = 1
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = conn.DefaultReadBufferSize
	}
	return &Adapter{
		config:  config,
		handler: handler,
		logger:  logger.With("component", "eventloop-adapter"),
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

// Start opens the listener, spins up the reactors, and begins accepting.
func (a *Adapter) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.config.Host, a.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	a.mu.Lock()
	a.listener = ln
	a.loops = make([]*loop, a.config.Loops)
	for i := range a.loops {
		a.loops[i] = newLoop(a, i)
	}
	loops := a.loops
	a.mu.Unlock()

	a.logger.Info("starting server", "addr", ln.Addr().String(), "loops", len(loops))

	for _, l := range loops {
		a.wg.Add(1)
		go l.run(ctx)
	}
	a.wg.Add(1)
	go a.acceptLoop()
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

// Stop closes the listener and shuts the reactors down; each reactor
// tears down its remaining connections, streaming ones included.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	ln := a.listener
	a.listener = nil
	loops := a.loops
	a.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, l := range loops {
		l.submit(completion{kind: compShutdown})
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
	return int(a.active.Load())
}

// acceptLoop re-arms itself after every accept and hands each socket to a
// reactor round-robin. Accept failures are logged and never stop the loop.
func (a *Adapter) acceptLoop() {
	defer a.wg.Done()

	for {
		a.mu.Lock()
		ln := a.listener
		loops := a.loops
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

		l := loops[a.next.Add(1)%uint64(len(loops))]
		l.submit(completion{kind: compAccept, nc: nc})
	}
}

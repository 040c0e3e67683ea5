package eventloop

import (
	"context"
	"log/slog"
	"net"
	"strconv"

	"httpcore/internal/core"
	"httpcore/internal/sse"
	"httpcore/internal/wire"
)

// compKind tags a completion record.
type compKind int

const (
	compAccept compKind = iota
	compRead
	compWrite
	compKick     // queued bytes want a write started
	compCloseReq // application asked for close
	compShutdown
)

// completion is one finished (or requested) operation delivered to the
// reactor. I/O goroutines block in the syscall and hand the result here;
// the reactor is the only goroutine that acts on it.
type completion struct {
	kind compKind
	conn *Conn
	nc   net.Conn // accept only
	n    int      // bytes read/written
	err  error
}

// loop is one reactor. It owns a table of live connections and processes
// their completions in submission order; per connection at most one read
// or one write is outstanding, so two requests can never interleave on
// the same buffer. Everything past the channel receive runs on the loop
// goroutine and needs no locks.
type loop struct {
	adapter *Adapter
	logger  *slog.Logger
	comps   chan completion
	done    chan struct{}
	conns   map[uint64]*Conn
}

func newLoop(a *Adapter, id int) *loop {
	return &loop{
		adapter: a,
		logger:  a.logger.With("loop", id),
		comps:   make(chan completion, 256),
		done:    make(chan struct{}),
		conns:   make(map[uint64]*Conn),
	}
}

// submit delivers a completion to the reactor. After shutdown submissions
// are dropped; every connection is already torn down by then.
func (l *loop) submit(c completion) {
	select {
	case l.comps <- c:
	case <-l.done:
	}
}

// run processes completions until a shutdown record arrives.
func (l *loop) run(ctx context.Context) {
	defer l.adapter.wg.Done()

	for comp := range l.comps {
		switch comp.kind {
		case compShutdown:
			for _, c := range l.conns {
				c.BeginClose()
				l.release(c)
			}
			close(l.done)
			return
		case compAccept:
			l.handleAccept(comp.nc)
		case compRead:
			l.handleRead(ctx, comp)
		case compWrite:
			l.handleWrite(comp)
		case compKick:
			l.handleKick(comp.conn)
		case compCloseReq:
			l.handleCloseReq(comp.conn)
		}
	}
}

// handleAccept registers a fresh connection and arms its first read.
func (l *loop) handleAccept(nc net.Conn) {
	a := l.adapter
	id := a.connID.Add(1)
	c := newConn(id, nc, l, a.config.ReadBufferSize, a.config.WriteQueueLimit)

	if a.metrics != nil {
		c.bytesWritten = a.metrics.BytesWritten.WithLabelValues(adapterLabel)
		c.backpressure = a.metrics.BackpressureTotal.WithLabelValues(adapterLabel)
		a.metrics.ConnectionsTotal.WithLabelValues(adapterLabel).Inc()
		a.metrics.ConnectionsActive.WithLabelValues(adapterLabel).Inc()
	}
	a.active.Add(1)
	c.OnClose(func() {
		a.active.Add(-1)
		if a.metrics != nil {
			a.metrics.ConnectionsActive.WithLabelValues(adapterLabel).Dec()
		}
	})

	l.conns[id] = c
	c.Activate()
	l.armRead(c)
}

// armRead starts one read completion. Never called while a response is
// still being written, so request bytes cannot interleave.
func (l *loop) armRead(c *Conn) {
	if c.readArmed || c.released {
		return
	}
	c.readArmed = true
	go func() {
		n, err := c.netConn.Read(c.readBuf)
		l.submit(completion{kind: compRead, conn: c, n: n, err: err})
	}()
}

// handleRead parses the inbound bytes and dispatches to the handler.
func (l *loop) handleRead(ctx context.Context, comp completion) {
	c := comp.conn
	c.readArmed = false
	if c.released {
		return
	}
	if comp.err != nil || comp.n == 0 {
		// Peer-initiated close or transport error; never retried.
		l.teardown(c)
		return
	}

	a := l.adapter
	req, perr := wire.ParseRequest(c.readBuf[:comp.n])
	if perr != nil {
		l.logger.Debug("malformed request", "remote", c.netConn.RemoteAddr().String(), "error", perr)
		if a.metrics != nil {
			a.metrics.ProtocolErrors.WithLabelValues(adapterLabel).Inc()
		}
		resp, _ := core.FinalizeResponse(nil, perr, &wire.Request{Proto: "HTTP/1.1"}, false)
		if err := c.Enqueue(wire.SerializeResponse(resp)); err == nil {
			c.closeAfterWrite = true
			l.startWrite(c)
		} else {
			l.teardown(c)
		}
		return
	}

	st := sse.NewStreamer(c, req, sse.AdapterOptions(a.metrics, adapterLabel, a.replay, a.logger))
	resp, herr := a.handler(ctx, req, st)

	if st.Started() {
		if herr != nil {
			l.logger.Error("handler error after stream start", "method", req.Method, "path", req.Path, "error", herr)
		}
		if a.metrics != nil {
			a.metrics.RequestsTotal.WithLabelValues(adapterLabel, req.Method, "stream").Inc()
		}
		// The stream head is queued; from here on the application (and
		// any replay goroutine) drives writes through kicks.
		l.startWrite(c)
		return
	}

	if herr != nil {
		l.logger.Error("handler error", "method", req.Method, "path", req.Path, "error", herr)
	}
	resp, keep := core.FinalizeResponse(resp, herr, req, a.config.KeepAlive)

	if a.metrics != nil {
		a.metrics.RequestsTotal.WithLabelValues(adapterLabel, req.Method, strconv.Itoa(resp.StatusCode)).Inc()
	}

	if err := c.Enqueue(wire.SerializeResponse(resp)); err != nil {
		// A response that cannot fit the queue cannot be delivered.
		l.teardown(c)
		return
	}
	c.closeAfterWrite = !keep
	c.rearmAfterWrite = keep
	l.startWrite(c)
}

// startWrite issues the next write completion if none is in flight.
func (l *loop) startWrite(c *Conn) {
	if c.writeInFlight || c.released {
		return
	}
	chunk, ok := c.NextChunk()
	if !ok {
		l.afterDrain(c)
		return
	}
	c.writeInFlight = true
	go func() {
		err := writeFull(c.netConn, chunk)
		l.submit(completion{kind: compWrite, conn: c, n: len(chunk), err: err})
	}()
}

// handleWrite processes one finished write.
func (l *loop) handleWrite(comp completion) {
	c := comp.conn
	c.writeInFlight = false
	if c.released {
		return
	}
	if comp.err != nil {
		l.teardown(c)
		return
	}
	if c.bytesWritten != nil {
		c.bytesWritten.Add(float64(comp.n))
	}
	l.startWrite(c)
}

// afterDrain runs when the queue is empty and no write is in flight.
func (l *loop) afterDrain(c *Conn) {
	switch {
	case c.State() == core.StateClosing:
		l.release(c)
	case c.closeAfterWrite:
		c.BeginClose()
		l.release(c)
	case c.rearmAfterWrite && c.State() == core.StateActive:
		c.rearmAfterWrite = false
		l.armRead(c)
	}
	// Streaming connections idle here until the next kick.
}

// handleKick starts a write for application-queued bytes. The coalescing
// flag resets before the queue is inspected, so a send that lost the
// submit race is still picked up by this drain.
func (l *loop) handleKick(c *Conn) {
	c.kicked.Store(false)
	if c.released {
		return
	}
	if c.State() == core.StateClosing && !c.writeInFlight {
		l.release(c)
		return
	}
	l.startWrite(c)
}

// handleCloseReq finishes an application-requested close. The state is
// already closing; if a write is in flight its completion path releases
// the connection.
func (l *loop) handleCloseReq(c *Conn) {
	if c.released || c.writeInFlight {
		return
	}
	l.release(c)
}

// teardown forces an immediate close after a transport error.
func (l *loop) teardown(c *Conn) {
	c.BeginClose()
	l.release(c)
}

// release is the single point where a connection leaves the table and its
// socket is closed. Stale completions for a released connection are
// ignored by their handlers.
func (l *loop) release(c *Conn) {
	if c.released {
		return
	}
	c.released = true
	c.netConn.Close()
	delete(l.conns, c.id)
	c.FinishClose()
}

// writeFull retries partial writes until the whole chunk is on the wire.
func writeFull(w net.Conn, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

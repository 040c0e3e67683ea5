package eventloop

import (
	"net"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"httpcore/internal/conn"
	"httpcore/pkg/errors"
)

// Conn is the completion-driven backend. The write surface can be called
// from any goroutine: it stages bytes on the shared bounded queue and
// nudges the owning reactor, which is the only place transport I/O is
// sequenced from. All fields below the Base are reactor-owned and never
// touched off the loop goroutine.
type Conn struct {
	*conn.Base
	id      uint64
	netConn net.Conn
	loop    *loop
	readBuf []byte

	bytesWritten prometheus.Counter
	backpressure prometheus.Counter

	// kicked coalesces reactor nudges: while a kick record is pending,
	// further kicks for this connection are dropped, so senders can never
	// flood the completion channel faster than the reactor drains it.
	kicked atomic.Bool

	// Reactor-owned completion bookkeeping. At most one read or one
	// write is in flight at any time, which is what keeps completions
	// ordered per connection.
	readArmed       bool
	writeInFlight   bool
	closeAfterWrite bool
	rearmAfterWrite bool
	released        bool
}

func newConn(id uint64, nc net.Conn, l *loop, readBufferSize, queueLimit int) *Conn {
	return &Conn{
		Base:    conn.NewBase(queueLimit),
		id:      id,
		netConn: nc,
		loop:    l,
		readBuf: make([]byte, readBufferSize),
	}
}

// WriteChunk queues data and asks the reactor to start a write if none is
// in flight. Delivery is asynchronous; transport failures surface on a
// later call as a closed error.
func (c *Conn) WriteChunk(p []byte) error {
	if err := c.Enqueue(p); err != nil {
		if c.backpressure != nil && errors.IsType(err, errors.ErrorTypeBackpressure) {
			c.backpressure.Inc()
		}
		return err
	}
	c.kick()
	return nil
}

// Flush nudges the reactor to hand queued bytes to the transport now.
func (c *Conn) Flush() error {
	if !c.IsAlive() {
		return errors.NewError(errors.ErrorTypeClosed, "connection closed").
			WithDetail("state", c.State().String())
	}
	c.kick()
	return nil
}

// kick submits at most one pending kick record; the reactor resets the
// flag when it picks the record up.
func (c *Conn) kick() {
	if c.kicked.CompareAndSwap(false, true) {
		c.loop.submit(completion{kind: compKick, conn: c})
	}
}

// Close is idempotent. The state flips to closing immediately (the queue
// is discarded); the reactor closes the socket once any in-flight write
// completes.
func (c *Conn) Close() error {
	if c.BeginClose() {
		c.loop.submit(completion{kind: compCloseReq, conn: c})
	}
	return nil
}

package blocking

import (
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"httpcore/internal/conn"
	"httpcore/pkg/errors"
)

// Conn is the thread-per-connection backend. Writes go straight to the
// socket: WriteChunk stages the chunk through the shared bounded queue
// (so backpressure rules match the event-loop backend) and drains it
// before returning, blocking the calling goroutine on partial writes.
type Conn struct {
	*conn.Base
	netConn net.Conn

	// wmu serializes socket writes between the serve goroutine and an
	// application goroutine holding the SSE writer.
	wmu sync.Mutex

	bytesWritten prometheus.Counter
	backpressure prometheus.Counter
}

func newConn(nc net.Conn, queueLimit int) *Conn {
	return &Conn{
		Base:    conn.NewBase(queueLimit),
		netConn: nc,
	}
}

// WriteChunk queues data and writes it synchronously. A transport error
// tears the connection down immediately; it is never retried here.
func (c *Conn) WriteChunk(p []byte) error {
	if err := c.Enqueue(p); err != nil {
		if c.backpressure != nil && errors.IsType(err, errors.ErrorTypeBackpressure) {
			c.backpressure.Inc()
		}
		return err
	}
	return c.drain()
}

// Flush drains any queued bytes to the socket. No-op when nothing is
// queued; fails with a closed error once the connection is down.
func (c *Conn) Flush() error {
	if !c.IsAlive() {
		return errors.NewError(errors.ErrorTypeClosed, "connection closed").
			WithDetail("state", c.State().String())
	}
	return c.drain()
}

func (c *Conn) drain() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	for {
		chunk, ok := c.NextChunk()
		if !ok {
			return nil
		}
		if err := writeFull(c.netConn, chunk); err != nil {
			c.teardown()
			return errors.NewError(errors.ErrorTypeTransport, "write failed").WithCause(err)
		}
		if c.bytesWritten != nil {
			c.bytesWritten.Add(float64(len(chunk)))
		}
	}
}

// Close is idempotent. It waits for an in-flight write to finish, then
// closes the socket; queued-but-unwritten chunks are discarded.
func (c *Conn) Close() error {
	if !c.BeginClose() {
		return nil
	}
	c.wmu.Lock()
	c.netConn.Close()
	c.wmu.Unlock()
	c.FinishClose()
	return nil
}

// teardown closes the socket after a transport error. Called with wmu
// held.
func (c *Conn) teardown() {
	if c.BeginClose() {
		c.netConn.Close()
		c.FinishClose()
	}
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

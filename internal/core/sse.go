package core

// SSEEvent is an immutable Server-Sent Event value. Data is required and
// may contain embedded newlines; the remaining fields are optional.
type SSEEvent struct {
	ID    string // event id, echoed by clients as Last-Event-ID on reconnect
	Type  string // event type name
	Data  string // payload, may be multiline
	Retry int    // reconnection delay in milliseconds
}

// SSEWriter pushes events over an open stream. It is handed to the
// application when a connection enters streaming mode and stays valid
// until Close or a transport error.
type SSEWriter interface {
	// SendEvent formats and writes one event, flushing immediately.
	SendEvent(ev *SSEEvent) error
	// SendKeepAlive writes a comment line for idle-timeout avoidance.
	SendKeepAlive() error
	// Close ends the stream and closes the underlying connection.
	// Idempotent; the connection is closed exactly once.
	Close() error
}

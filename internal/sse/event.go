// Package sse implements the Server-Sent Events layer: the wire
// formatter, the restricted streaming handle over a connection, and the
// event writer handed to the application.
package sse

import (
	"bytes"
	"strconv"
	"strings"

	"httpcore/internal/core"
)

// FormatEvent renders one event in the text/event-stream format: the
// optional event/id/retry fields, one "data:" line per newline-separated
// line of Data, and a terminating blank line. Empty Data still emits a
// single "data: " line so every event carries at least one. "\r" inside
// Data passes through unescaped; only "\n" is a line boundary.
func FormatEvent(ev *core.SSEEvent) []byte {
	var buf bytes.Buffer
	if ev.Type != "" {
		buf.WriteString("event: ")
		buf.WriteString(ev.Type)
		buf.WriteByte('\n')
	}
	if ev.ID != "" {
		buf.WriteString("id: ")
		buf.WriteString(ev.ID)
		buf.WriteByte('\n')
	}
	if ev.Retry > 0 {
		buf.WriteString("retry: ")
		buf.WriteString(strconv.Itoa(ev.Retry))
		buf.WriteByte('\n')
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// keepAlivePayload is the comment written by SendKeepAlive.
var keepAlivePayload = []byte(":heartbeat\n\n")

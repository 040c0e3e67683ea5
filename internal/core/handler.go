package core

import (
	"context"

	"httpcore/internal/wire"
)

// Streamer is the capability a handler uses to switch its connection into
// streaming mode. After StartStream succeeds the adapter stops managing
// the connection's lifecycle; the returned writer owns it.
type Streamer interface {
	StartStream() (SSEWriter, error)
}

// Handler processes one parsed request. It either returns a complete
// response for the adapter to serialize, or calls stream.StartStream and
// returns (nil, nil) to keep the connection open for events.
//
// On the event-loop backend the handler runs on the reactor goroutine and
// must not block; long-lived work belongs in a goroutine holding the
// stream writer.
type Handler func(ctx context.Context, req *wire.Request, stream Streamer) (*wire.Response, error)

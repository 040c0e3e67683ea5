package core

import (
	stderrors "errors"

	"httpcore/internal/wire"
	"httpcore/pkg/errors"
)

// ErrorResponse maps a handler or parse error to the response the adapter
// sends in its place. Structured errors carry their own status code;
// anything else becomes a plain 500 with no internals leaked.
func ErrorResponse(err error) *wire.Response {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return wire.TextResponse(e.HTTPStatusCode(), e.Message)
	}
	return wire.TextResponse(500, "Internal Server Error")
}

// FinalizeResponse turns a handler outcome into the response an adapter
// serializes, and decides whether the connection is reused afterwards.
// Both backends go through this so their wire output is byte-identical
// for the same handler behavior.
func FinalizeResponse(resp *wire.Response, herr error, req *wire.Request, keepAliveEnabled bool) (*wire.Response, bool) {
	if herr != nil {
		resp = ErrorResponse(herr)
	}
	if resp == nil {
		resp = wire.TextResponse(500, "empty response")
	}
	keep := keepAliveEnabled && req.KeepAlive() && herr == nil
	if keep {
		resp.SetHeader("Connection", "keep-alive")
	} else {
		resp.SetHeader("Connection", "close")
	}
	return resp, keep
}

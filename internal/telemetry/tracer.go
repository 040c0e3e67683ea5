// Package telemetry adds OpenTelemetry spans around handler dispatch.
// The global tracer provider is used, so without an SDK configured the
// spans are no-ops and cost almost nothing.
package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"httpcore/internal/core"
	"httpcore/internal/wire"
)

const tracerName = "httpcore"

// WrapHandler wraps a core.Handler so every dispatch runs inside a
// server span carrying the request method and path.
func WrapHandler(handler core.Handler) core.Handler {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req *wire.Request, st core.Streamer) (*wire.Response, error) {
		ctx, span := tracer.Start(ctx, req.Method+" "+req.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.target", req.Path),
			),
		)
		defer span.End()

		resp, err := handler(ctx, req, st)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return resp, err
		}

		if resp != nil {
			span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
			if resp.StatusCode >= 400 {
				span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		}

		return resp, err
	}
}

// SpanFromContext returns the span from context
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddEvent adds an event to the current span
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

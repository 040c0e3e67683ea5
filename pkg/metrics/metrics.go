package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server core. The "adapter"
// label distinguishes the event-loop and blocking backends.
type Metrics struct {
	// Connection metrics
	ConnectionsActive *prometheus.GaugeVec
	ConnectionsTotal  *prometheus.CounterVec

	// Request/response metrics
	RequestsTotal  *prometheus.CounterVec
	ProtocolErrors *prometheus.CounterVec
	BytesWritten   *prometheus.CounterVec

	// Backpressure metrics
	BackpressureTotal *prometheus.CounterVec

	// SSE metrics
	SSEStreamsActive *prometheus.GaugeVec
	SSEStreamsTotal  *prometheus.CounterVec
	SSEEventsSent    *prometheus.CounterVec
}

// New creates a new Metrics instance registered on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		ConnectionsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "httpcore_connections_active",
				Help: "Number of currently open connections",
			},
			[]string{"adapter"},
		),
		ConnectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpcore_connections_total",
				Help: "Total number of accepted connections",
			},
			[]string{"adapter"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpcore_requests_total",
				Help: "Total number of parsed requests dispatched to the handler",
			},
			[]string{"adapter", "method", "status"},
		),
		ProtocolErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpcore_protocol_errors_total",
				Help: "Total number of malformed requests answered with a 400",
			},
			[]string{"adapter"},
		),
		BytesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpcore_bytes_written_total",
				Help: "Total bytes written to client sockets",
			},
			[]string{"adapter"},
		),
		BackpressureTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpcore_backpressure_total",
				Help: "Total number of writes rejected because the write queue was full",
			},
			[]string{"adapter"},
		),
		SSEStreamsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "httpcore_sse_streams_active",
				Help: "Number of connections currently in streaming mode",
			},
			[]string{"adapter"},
		),
		SSEStreamsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpcore_sse_streams_total",
				Help: "Total number of connections that entered streaming mode",
			},
			[]string{"adapter"},
		),
		SSEEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpcore_sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"adapter"},
		),
	}
}

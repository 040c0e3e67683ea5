package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistry(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ConnectionsTotal.WithLabelValues("eventloop").Inc()
	m.ConnectionsTotal.WithLabelValues("eventloop").Inc()
	m.ConnectionsTotal.WithLabelValues("blocking").Inc()

	if got := testutil.ToFloat64(m.ConnectionsTotal.WithLabelValues("eventloop")); got != 2 {
		t.Errorf("eventloop connections = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ConnectionsTotal.WithLabelValues("blocking")); got != 1 {
		t.Errorf("blocking connections = %v, want 1", got)
	}
}

func TestAdapterLabelsIndependent(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.SSEStreamsActive.WithLabelValues("eventloop").Inc()
	m.SSEStreamsActive.WithLabelValues("eventloop").Inc()
	m.SSEStreamsActive.WithLabelValues("eventloop").Dec()

	if got := testutil.ToFloat64(m.SSEStreamsActive.WithLabelValues("eventloop")); got != 1 {
		t.Errorf("active streams = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SSEStreamsActive.WithLabelValues("blocking")); got != 0 {
		t.Errorf("blocking streams = %v, want 0", got)
	}
}

func TestRequestsTotalLabels(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RequestsTotal.WithLabelValues("eventloop", "GET", "200").Inc()
	m.RequestsTotal.WithLabelValues("eventloop", "GET", "404").Inc()
	m.RequestsTotal.WithLabelValues("eventloop", "GET", "200").Inc()

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("eventloop", "GET", "200")); got != 2 {
		t.Errorf("200s = %v, want 2", got)
	}
}

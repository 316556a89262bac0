// Package monitoring collects Prometheus metrics for the bridge:
// instance lifecycle, envelope traffic per kind and direction, and
// invocation outcomes and latency.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Envelope directions as seen from the native side.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// Metrics holds all Prometheus metrics for the bridge.
type Metrics struct {
	registry *prometheus.Registry

	// Instance lifecycle
	InstancesMounted prometheus.Gauge
	MountsTotal      prometheus.Counter
	UnmountsTotal    prometheus.Counter

	// Envelope traffic
	EnvelopesTotal *prometheus.CounterVec

	// Invocations
	InvocationsTotal   *prometheus.CounterVec
	InvocationDuration prometheus.Histogram

	// WebSocket attachments
	WSConnections prometheus.Gauge

	startTime time.Time
	Uptime    prometheus.Gauge
}

// New creates a metrics collector on its own registry, so multiple
// collectors can coexist in one process (and in tests).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry:  reg,
		startTime: time.Now(),

		InstancesMounted: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dombridge_instances_mounted",
			Help: "Number of currently mounted proxy instances",
		}),
		MountsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dombridge_mounts_total",
			Help: "Total number of instance mounts",
		}),
		UnmountsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dombridge_unmounts_total",
			Help: "Total number of instance unmounts",
		}),

		EnvelopesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dombridge_envelopes_total",
			Help: "Total envelopes by kind and direction",
		}, []string{"kind", "direction"}),

		InvocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dombridge_invocations_total",
			Help: "Total native action invocations by status",
		}, []string{"status"}),
		InvocationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dombridge_invocation_duration_seconds",
			Help:    "Native action invocation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dombridge_ws_connections",
			Help: "Number of attached websocket runtimes",
		}),

		Uptime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dombridge_uptime_seconds",
			Help: "Bridge server uptime in seconds",
		}),
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordMount tracks a successful instance mount.
func (m *Metrics) RecordMount() {
	if m == nil {
		return
	}
	m.MountsTotal.Inc()
	m.InstancesMounted.Inc()
}

// RecordUnmount tracks an instance teardown.
func (m *Metrics) RecordUnmount() {
	if m == nil {
		return
	}
	m.UnmountsTotal.Inc()
	m.InstancesMounted.Dec()
}

// RecordEnvelope tracks one envelope crossing the bridge.
func (m *Metrics) RecordEnvelope(kind, direction string) {
	if m == nil {
		return
	}
	m.EnvelopesTotal.WithLabelValues(kind, direction).Inc()
}

// RecordInvocation tracks one native action invocation.
func (m *Metrics) RecordInvocation(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.InvocationsTotal.WithLabelValues(status).Inc()
	m.InvocationDuration.Observe(duration.Seconds())
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	if m == nil {
		return
	}
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}

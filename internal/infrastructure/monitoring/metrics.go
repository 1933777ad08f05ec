package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the GUI stack. Broker and
// compositor share the struct; each binary only moves its own series.
type Metrics struct {
	// Broker metrics
	BrokerRequests        *prometheus.CounterVec
	BrokerRequestDuration *prometheus.HistogramVec
	GPUCommittedMB        prometheus.Gauge
	CompositorRegistered  prometheus.Gauge
	Cascades              *prometheus.CounterVec
	TransportRefusals     *prometheus.CounterVec

	// Compositor metrics
	Surfaces    *prometheus.GaugeVec
	Frames      prometheus.Counter
	StaleFrames prometheus.Counter
	InputEvents  *prometheus.CounterVec
	InputDropped *prometheus.CounterVec
	IPCCalls     *prometheus.CounterVec
	IPCDuration  *prometheus.HistogramVec

	// Status API metrics
	HTTPRequests  *prometheus.CounterVec
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

var latencyBuckets = []float64{.00001, .00005, .0001, .00025, .0005, .001, .005, .01, .05, .1, .5, 1, 2}

// NewMetrics registers every metric with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		BrokerRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gui_broker_requests_total",
				Help: "Broker requests by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		BrokerRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gui_broker_request_duration_seconds",
				Help:    "Time the broker spends handling one request",
				Buckets: latencyBuckets,
			},
			[]string{"kind"},
		),
		GPUCommittedMB: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "gui_broker_gpu_committed_mb",
				Help: "GPU memory committed across all grants",
			},
		),
		CompositorRegistered: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "gui_broker_compositor_registered",
				Help: "1 while a compositor holds the compositor capability",
			},
		),
		Cascades: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gui_broker_cascades_total",
				Help: "Bulk revocations by cause",
			},
			[]string{"cause"},
		),
		TransportRefusals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gui_broker_transport_refusals_total",
				Help: "Calls refused before reaching the broker",
			},
			[]string{"reason"},
		),

		Surfaces: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gui_compositor_surfaces",
				Help: "Surfaces by lifecycle state",
			},
			[]string{"state"},
		),
		Frames: f.NewCounter(
			prometheus.CounterOpts{
				Name: "gui_compositor_frames_total",
				Help: "Frames completed by the render worker",
			},
		),
		StaleFrames: f.NewCounter(
			prometheus.CounterOpts{
				Name: "gui_compositor_stale_frames_total",
				Help: "Frame completions discarded as out of order",
			},
		),
		InputEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gui_compositor_input_events_total",
				Help: "Decoded input events by kind",
			},
			[]string{"kind"},
		),
		InputDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gui_compositor_input_dropped_total",
				Help: "Input events discarded because their device is not granted",
			},
			[]string{"device"},
		),
		IPCCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gui_compositor_ipc_calls_total",
				Help: "Broker calls issued by the compositor",
			},
			[]string{"op", "result"},
		),
		IPCDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gui_compositor_ipc_duration_seconds",
				Help:    "Broker round-trip time seen by the compositor",
				Buckets: latencyBuckets,
			},
			[]string{"op"},
		),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gui_status_http_requests_total",
				Help: "Status API requests",
			},
			[]string{"method", "path", "status"},
		),
		WSConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "gui_status_ws_connections",
				Help: "Open event stream connections",
			},
		),
		WSMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gui_status_ws_messages_total",
				Help: "Event stream messages sent",
			},
			[]string{"type"},
		),
	}
}

// RecordBrokerRequest records one broker decision
func (m *Metrics) RecordBrokerRequest(kind, outcome string, duration time.Duration) {
	m.BrokerRequests.WithLabelValues(kind, outcome).Inc()
	m.BrokerRequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// SetBrokerState publishes the broker aggregates
func (m *Metrics) SetBrokerState(gpuCommittedMB uint64, compositor bool) {
	m.GPUCommittedMB.Set(float64(gpuCommittedMB))
	if compositor {
		m.CompositorRegistered.Set(1)
	} else {
		m.CompositorRegistered.Set(0)
	}
}

// IncCascade counts one bulk revocation
func (m *Metrics) IncCascade(cause string) {
	m.Cascades.WithLabelValues(cause).Inc()
}

// IncTransportRefusal counts a call refused by the transport
func (m *Metrics) IncTransportRefusal(reason string) {
	m.TransportRefusals.WithLabelValues(reason).Inc()
}

// RecordIPCCall records one compositor to broker call
func (m *Metrics) RecordIPCCall(op, result string, duration time.Duration) {
	m.IPCCalls.WithLabelValues(op, result).Inc()
	m.IPCDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetSurfaces publishes surface counts by state
func (m *Metrics) SetSurfaces(counts map[string]int) {
	m.Surfaces.Reset()
	for state, n := range counts {
		m.Surfaces.WithLabelValues(state).Set(float64(n))
	}
}

// RecordWSMessage records an event stream message
func (m *Metrics) RecordWSMessage(msgType string) {
	m.WSMessages.WithLabelValues(msgType).Inc()
}

package logsink

import (
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks the operational statistics this core exposes for its
// own health (spec.md's metrics Non-goal excludes a host-facing metrics
// *feature*, not instrumentation of this client's own send path).
type Metrics struct {
	registry *prometheus.Registry

	MessagesEnqueued   prometheus.Counter
	MessagesDropped    prometheus.Counter
	NotificationsSent  prometheus.Counter
	CommandsSent       prometheus.Counter
	ExtensionsWritten  prometheus.Counter
	RingFullEvents     prometheus.Counter
	PeakBufferFlushes  prometheus.Counter
	ReconnectCount     prometheus.Counter
	PeakBufferDepth    prometheus.Gauge
	HandshakeDuration  prometheus.Histogram
	ControlChannelCall prometheus.Histogram
}

// NewMetrics creates a fresh Metrics instance registered in its own
// private registry (so multiple Client instances in one process don't
// collide on prometheus' default global registry).
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		MessagesEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsink_messages_enqueued_total",
			Help: "Messages admitted to the ring or peak buffer.",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsink_messages_dropped_total",
			Help: "Messages dropped because the ring and peak buffer were both full.",
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsink_notifications_sent_total",
			Help: "AddLogLevelName/AddSourceName frames sent.",
		}),
		CommandsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsink_commands_sent_total",
			Help: "ClearLogViewer/SaveSnapshot frames sent.",
		}),
		ExtensionsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsink_message_extensions_total",
			Help: "MessageExtension blocks written for long messages.",
		}),
		RingFullEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsink_ring_full_total",
			Help: "Reserve attempts that found the ring's free stack empty.",
		}),
		PeakBufferFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsink_peak_buffer_flushes_total",
			Help: "Entries successfully drained from the peak buffer into the ring.",
		}),
		ReconnectCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsink_reconnect_total",
			Help: "Successful re-handshakes after entering Degraded.",
		}),
		PeakBufferDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logsink_peak_buffer_depth",
			Help: "Current number of entries queued in the peak buffer.",
		}),
		HandshakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logsink_handshake_duration_seconds",
			Help:    "Wall-clock duration of a full handshake sequence.",
			Buckets: prometheus.DefBuckets,
		}),
		ControlChannelCall: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logsink_control_channel_call_duration_seconds",
			Help:    "Wall-clock duration of one control-channel request/reply exchange.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.MessagesEnqueued, m.MessagesDropped, m.NotificationsSent, m.CommandsSent,
		m.ExtensionsWritten, m.RingFullEvents, m.PeakBufferFlushes, m.ReconnectCount,
		m.PeakBufferDepth, m.HandshakeDuration, m.ControlChannelCall,
	)
	return m
}

// Registry exposes the private prometheus registry so a host can mount
// it behind its own /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Snapshot is a point-in-time read of every counter/gauge, useful for
// assertions in tests without standing up an HTTP scrape endpoint.
type Snapshot struct {
	MessagesEnqueued  uint64
	MessagesDropped   uint64
	NotificationsSent uint64
	CommandsSent      uint64
	ExtensionsWritten uint64
	RingFullEvents    uint64
	PeakBufferFlushes uint64
	ReconnectCount    uint64
	PeakBufferDepth   float64
}

func readCounter(c prometheus.Counter) uint64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return uint64(m.GetCounter().GetValue())
}

func readGauge(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// Snapshot takes a consistent-enough (not atomically joint) read of all
// counters and gauges for diagnostics and tests.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		MessagesEnqueued:  readCounter(m.MessagesEnqueued),
		MessagesDropped:   readCounter(m.MessagesDropped),
		NotificationsSent: readCounter(m.NotificationsSent),
		CommandsSent:      readCounter(m.CommandsSent),
		ExtensionsWritten: readCounter(m.ExtensionsWritten),
		RingFullEvents:    readCounter(m.RingFullEvents),
		PeakBufferFlushes: readCounter(m.PeakBufferFlushes),
		ReconnectCount:    readCounter(m.ReconnectCount),
		PeakBufferDepth:   readGauge(m.PeakBufferDepth),
	}
}

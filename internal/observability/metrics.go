package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions      prometheus.Gauge
	SessionEvents       *prometheus.CounterVec
	TranscribeQueueSize prometheus.Gauge
	TranslateQueueSize  prometheus.Gauge
	PacketRedeliveries  *prometheus.CounterVec
	ProcessorHardResets prometheus.Counter
	PersistenceErrors   *prometheus.CounterVec
	PacketStageLatency  *prometheus.HistogramVec
	packetStageWindow   *packetStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active transcription sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		TranscribeQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcribe_queue_depth",
			Help:      "Number of transcription packets currently queued.",
		}),
		TranslateQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "translate_queue_depth",
			Help:      "Number of translation packets currently queued.",
		}),
		PacketRedeliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packet_redeliveries_total",
			Help:      "Packets redelivered after their worker timeout elapsed, by queue.",
		}, []string{"queue"}),
		ProcessorHardResets: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processor_hard_resets_total",
			Help:      "Times a session's processor was discarded for exceeding the audio backlog limit.",
		}),
		PersistenceErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Best-effort persistence failures by operation.",
		}, []string{"op"}),
		PacketStageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "packet_stage_latency_ms",
			Help:      "Packet life-cycle stage latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 15000, 20000, 30000},
		}, []string{"stage"}),
		packetStageWindow: newPacketStageWindow(256),
	}
}

func (m *Metrics) ObserveSessionEvent(event string) {
	if m == nil || m.SessionEvents == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObservePacketStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Milliseconds())
	m.PacketStageLatency.WithLabelValues(stage).Observe(ms)
	m.packetStageWindow.Observe(stage, ms)
}

func (m *Metrics) ObserveRedelivery(queue string) {
	if m == nil || m.PacketRedeliveries == nil {
		return
	}
	m.PacketRedeliveries.WithLabelValues(queue).Inc()
}

func (m *Metrics) ObserveHardReset() {
	if m == nil || m.ProcessorHardResets == nil {
		return
	}
	m.ProcessorHardResets.Inc()
}

func (m *Metrics) ObservePersistenceError(op string) {
	if m == nil || m.PersistenceErrors == nil {
		return
	}
	m.PersistenceErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) SnapshotPacketStages() PacketStageSnapshot {
	if m == nil || m.packetStageWindow == nil {
		return PacketStageSnapshot{}
	}
	return m.packetStageWindow.Snapshot()
}

func (m *Metrics) ResetPacketStages() {
	if m == nil || m.packetStageWindow == nil {
		return
	}
	m.packetStageWindow.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
